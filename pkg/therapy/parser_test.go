package therapy

import (
	"testing"
)

func TestParseStatin(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name              string
		input             string
		expectedAgent     string
		expectedDose      float64
		expectedCanonical string
		wantErr           bool
	}{
		{
			name:              "High intensity atorvastatin",
			input:             "Atorvastatin 80mg",
			expectedAgent:     "Atorvastatin",
			expectedDose:      80,
			expectedCanonical: "Atorvastatin 80 mg",
			wantErr:           false,
		},
		{
			name:              "Lowercase with spaced dose unit",
			input:             "rosuvastatin 20 mg",
			expectedAgent:     "Rosuvastatin",
			expectedDose:      20,
			expectedCanonical: "Rosuvastatin 20 mg",
			wantErr:           false,
		},
		{
			name:              "Moderate intensity atorvastatin",
			input:             "Atorvastatin 20 mg",
			expectedAgent:     "Atorvastatin",
			expectedDose:      20,
			expectedCanonical: "Atorvastatin 20 mg",
			wantErr:           false,
		},
		{
			name:              "Uppercase input",
			input:             "ROSUVASTATIN 10MG",
			expectedAgent:     "Rosuvastatin",
			expectedDose:      10,
			expectedCanonical: "Rosuvastatin 10 mg",
			wantErr:           false,
		},
		{
			name:              "Fractional dose",
			input:             "Simvastatin 2.5 mg",
			expectedAgent:     "Simvastatin",
			expectedDose:      2.5,
			expectedCanonical: "Simvastatin 2.5 mg",
			wantErr:           false,
		},
		{
			name:    "Empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "Missing dose",
			input:   "Atorvastatin",
			wantErr: true,
		},
		{
			name:    "Missing agent",
			input:   "80mg",
			wantErr: true,
		},
		{
			name:    "Non-statin agent",
			input:   "Ezetimibe 10mg",
			wantErr: true,
		},
		{
			name:    "Invalid characters",
			input:   "Atorvastatin !80mg",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parser.ParseStatin(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseStatin() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && result != nil {
				if result.Agent != tt.expectedAgent {
					t.Errorf("ParseStatin() agent = %v, want %v", result.Agent, tt.expectedAgent)
				}
				if result.DoseMg != tt.expectedDose {
					t.Errorf("ParseStatin() dose = %v, want %v", result.DoseMg, tt.expectedDose)
				}
				if result.Canonical != tt.expectedCanonical {
					t.Errorf("ParseStatin() canonical = %v, want %v", result.Canonical, tt.expectedCanonical)
				}
				if result.Original != tt.input {
					t.Errorf("ParseStatin() original = %v, want %v", result.Original, tt.input)
				}
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Mixed case with padding", "  Atorvastatin   80 MG ", "atorvastatin 80 mg"},
		{"Class label", "PCSK9 Inhibitor", "pcsk9 inhibitor"},
		{"Already normalized", "ezetimibe", "ezetimibe"},
		{"Empty", "", ""},
		{"Only whitespace", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
