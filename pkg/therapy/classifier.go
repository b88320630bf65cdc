package therapy

import "strings"

// DrugClass identifies a mutually exclusive lipid-therapy drug class.
type DrugClass string

const (
	ClassStatin     DrugClass = "statins"
	ClassPCSK9      DrugClass = "pcsk9"
	ClassEzetimibe  DrugClass = "ezetimibe"
	ClassInclisiran DrugClass = "inclisiran"
	ClassUnknown    DrugClass = ""
)

// classMarkers maps each drug class to the lowercase substrings that identify
// its member agents in free-text therapy names.
var classMarkers = map[DrugClass][]string{
	ClassStatin:     {"atorvastatin", "rosuvastatin", "simvastatin", "pravastatin"},
	ClassPCSK9:      {"pcsk9", "evolocumab", "alirocumab"},
	ClassEzetimibe:  {"ezetimibe"},
	ClassInclisiran: {"inclisiran"},
}

// classOrder fixes the reporting order of grouped classifications.
var classOrder = []DrugClass{ClassStatin, ClassPCSK9, ClassEzetimibe, ClassInclisiran}

// String returns the string representation of the drug class.
func (c DrugClass) String() string {
	return string(c)
}

// IsValid reports whether the class is one of the recognized drug classes.
func (c DrugClass) IsValid() bool {
	_, exists := classMarkers[c]
	return exists
}

// Classify assigns a therapy name to a drug class by substring membership.
// Unrecognized names return ClassUnknown; they can never conflict.
func Classify(name string) DrugClass {
	normalized := Normalize(name)
	if normalized == "" {
		return ClassUnknown
	}
	for _, class := range classOrder {
		for _, marker := range classMarkers[class] {
			if strings.Contains(normalized, marker) {
				return class
			}
		}
	}
	return ClassUnknown
}

// ClassifyAll groups therapy names by drug class, preserving input order within
// each class. Unclassified names are dropped.
func ClassifyAll(names []string) map[DrugClass][]string {
	groups := make(map[DrugClass][]string)
	for _, name := range names {
		if class := Classify(name); class != ClassUnknown {
			groups[class] = append(groups[class], name)
		}
	}
	return groups
}

// Classes returns the recognized drug classes in reporting order.
func Classes() []DrugClass {
	classes := make([]DrugClass, len(classOrder))
	copy(classes, classOrder)
	return classes
}
