package domain

import (
	"fmt"
	"time"
)

// EngineError represents a standardized error response
type EngineError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeMissingInput     = "MISSING_INPUT"
	ErrCodeDomainConstraint = "DOMAIN_CONSTRAINT_VIOLATION"
	ErrCodeCalculation      = "CALCULATION_ERROR"
	ErrCodeDatabase         = "DATABASE_ERROR"
	ErrCodeExternalAPI      = "EXTERNAL_API_ERROR"
	ErrCodeRateLimit        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal         = "INTERNAL_SERVER_ERROR"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeTherapyParsing   = "THERAPY_PARSING_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeTimeout          = "REQUEST_TIMEOUT"
	ErrCodeUnavailable      = "SERVICE_UNAVAILABLE"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewEngineError creates a new EngineError with timestamp
func NewEngineError(code, message, details, requestID string) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
