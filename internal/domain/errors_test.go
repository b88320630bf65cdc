package domain

import (
	"testing"
	"time"
)

func TestEngineError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Basic error",
			code:      ErrCodeInvalidInput,
			message:   "Invalid therapy name",
			details:   "The provided therapy name does not match any known drug class",
			requestID: "req-123",
		},
		{
			name:      "Database error",
			code:      ErrCodeDatabase,
			message:   "Database connection failed",
			details:   "Unable to connect to PostgreSQL",
			requestID: "req-456",
		},
		{
			name:      "Calculation error",
			code:      ErrCodeCalculation,
			message:   "Risk transform failed",
			details:   "Linear predictor produced a non-finite value",
			requestID: "req-789",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewEngineError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}

			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}

			// Check that timestamp is recent (within last minute)
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			// Test Error() method
			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "String validation error",
			field:   "discharge_statin",
			message: "Unrecognized statin regimen",
			value:   "Atorvastatin 200mg",
		},
		{
			name:    "Float validation error",
			field:   "ldl",
			message: "Must be positive",
			value:   -1.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			// Test Error() method
			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestErrorCodeConstants(t *testing.T) {
	constants := map[string]string{
		"ErrCodeInvalidInput":     ErrCodeInvalidInput,
		"ErrCodeMissingInput":     ErrCodeMissingInput,
		"ErrCodeDomainConstraint": ErrCodeDomainConstraint,
		"ErrCodeCalculation":      ErrCodeCalculation,
		"ErrCodeDatabase":         ErrCodeDatabase,
		"ErrCodeExternalAPI":      ErrCodeExternalAPI,
		"ErrCodeRateLimit":        ErrCodeRateLimit,
		"ErrCodeInternal":         ErrCodeInternal,
		"ErrCodeValidation":       ErrCodeValidation,
		"ErrCodeTherapyParsing":   ErrCodeTherapyParsing,
	}

	expectedValues := map[string]string{
		"ErrCodeInvalidInput":     "INVALID_INPUT",
		"ErrCodeMissingInput":     "MISSING_INPUT",
		"ErrCodeDomainConstraint": "DOMAIN_CONSTRAINT_VIOLATION",
		"ErrCodeCalculation":      "CALCULATION_ERROR",
		"ErrCodeDatabase":         "DATABASE_ERROR",
		"ErrCodeExternalAPI":      "EXTERNAL_API_ERROR",
		"ErrCodeRateLimit":        "RATE_LIMIT_EXCEEDED",
		"ErrCodeInternal":         "INTERNAL_SERVER_ERROR",
		"ErrCodeValidation":       "VALIDATION_ERROR",
		"ErrCodeTherapyParsing":   "THERAPY_PARSING_ERROR",
	}

	for name, actual := range constants {
		expected := expectedValues[name]
		if actual != expected {
			t.Errorf("Expected %s to be %s, got %s", name, expected, actual)
		}
	}
}
