package therapy

import (
	"regexp"
	"strings"

	"github.com/prime-cvd-server/internal/domain"
)

// Therapy name patterns for validation
var (
	// Agent names and regimens: letters, then letters, digits, spaces,
	// hyphens, dots and slashes ("PCSK9 inhibitor", "Atorvastatin 80mg")
	therapyNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 ./-]*$`)
)

// Validator provides therapy-name validation.
type Validator struct{}

// NewValidator creates a new therapy validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTherapyName validates a free-text therapy name.
func (v *Validator) ValidateTherapyName(name string) error {
	if name == "" {
		return nil // Absent therapy entries are allowed
	}

	name = strings.TrimSpace(name)

	if len(name) > 64 {
		return domain.NewValidationError("therapy_name",
			"Therapy name should not exceed 64 characters",
			name)
	}

	if !therapyNamePattern.MatchString(name) {
		return domain.NewValidationError("therapy_name",
			"Therapy name may contain only letters, digits, spaces, hyphens, dots and slashes",
			name)
	}

	return nil
}

// ValidatePlanNames validates every free-text entry of a therapy selection.
func (v *Validator) ValidatePlanNames(names []string) []error {
	var errors []error

	for _, name := range names {
		if err := v.ValidateTherapyName(name); err != nil {
			errors = append(errors, err)
		}
	}

	return errors
}
