package therapy

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  DrugClass
	}{
		{"Atorvastatin regimen", "Atorvastatin 80mg", ClassStatin},
		{"Rosuvastatin regimen", "rosuvastatin 20 mg", ClassStatin},
		{"Simvastatin", "Simvastatin 40mg", ClassStatin},
		{"Pravastatin", "Pravastatin 40mg", ClassStatin},
		{"Class label", "PCSK9 inhibitor", ClassPCSK9},
		{"Evolocumab", "Evolocumab", ClassPCSK9},
		{"Alirocumab", "Alirocumab 150mg", ClassPCSK9},
		{"Ezetimibe", "Ezetimibe", ClassEzetimibe},
		{"Ezetimibe regimen", "ezetimibe 10 mg", ClassEzetimibe},
		{"Inclisiran", "Inclisiran", ClassInclisiran},
		{"Bempedoic acid has no class", "Bempedoic acid", ClassUnknown},
		{"Unrelated drug", "Aspirin 81mg", ClassUnknown},
		{"Empty", "", ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.input); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestClassifyAll(t *testing.T) {
	names := []string{
		"Atorvastatin 80mg",
		"Ezetimibe",
		"Rosuvastatin 20mg",
		"Aspirin 81mg",
		"PCSK9 inhibitor",
		"",
	}

	groups := ClassifyAll(names)

	statins := groups[ClassStatin]
	if len(statins) != 2 {
		t.Fatalf("Expected 2 statins, got %d", len(statins))
	}
	// Input order is preserved within a class
	if statins[0] != "Atorvastatin 80mg" || statins[1] != "Rosuvastatin 20mg" {
		t.Errorf("Unexpected statin ordering: %v", statins)
	}

	if len(groups[ClassEzetimibe]) != 1 {
		t.Errorf("Expected 1 ezetimibe entry, got %d", len(groups[ClassEzetimibe]))
	}
	if len(groups[ClassPCSK9]) != 1 {
		t.Errorf("Expected 1 PCSK9 entry, got %d", len(groups[ClassPCSK9]))
	}

	// Unclassified names never appear in any group
	for class, members := range groups {
		for _, member := range members {
			if member == "Aspirin 81mg" || member == "" {
				t.Errorf("Unclassified name %q leaked into class %v", member, class)
			}
		}
	}
}

func TestDrugClassIsValid(t *testing.T) {
	for _, class := range []DrugClass{ClassStatin, ClassPCSK9, ClassEzetimibe, ClassInclisiran} {
		if !class.IsValid() {
			t.Errorf("Expected %v to be valid", class)
		}
	}

	if ClassUnknown.IsValid() {
		t.Error("ClassUnknown should not be valid")
	}
	if DrugClass("fibrates").IsValid() {
		t.Error("Unrecognized class should not be valid")
	}
}

func TestClasses(t *testing.T) {
	classes := Classes()
	if len(classes) != 4 {
		t.Fatalf("Expected 4 drug classes, got %d", len(classes))
	}

	if classes[0] != ClassStatin {
		t.Errorf("Expected statins first, got %v", classes[0])
	}

	// Returned slice is a copy
	classes[0] = DrugClass("mutated")
	if Classes()[0] != ClassStatin {
		t.Error("Classes() must return a copy")
	}
}
