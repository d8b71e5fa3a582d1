package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeExecution         = "EXECUTION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeInterpolation     = "INTERPOLATION_ERROR"
	ErrCodeNoPendingDecision = "NO_PENDING_DECISION"
	ErrCodeDecisionClosed    = "DECISION_CLOSED"
	ErrCodeRunFailure        = "RUN_FAILURE"
	ErrCodeCancelled         = "CANCELLED"
)

// ConclaveError is the structured error type returned by every conclave operation.
type ConclaveError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	StepID  string         `json:"step_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *ConclaveError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ConclaveError) Unwrap() error {
	return e.Cause
}

// NewError creates a new ConclaveError.
func NewError(code, message string) *ConclaveError {
	return &ConclaveError{Code: code, Message: message}
}

// NewErrorf creates a new ConclaveError with a formatted message.
func NewErrorf(code, format string, args ...any) *ConclaveError {
	return &ConclaveError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches a step ID to the error.
func (e *ConclaveError) WithStep(stepID string) *ConclaveError {
	e.StepID = stepID
	return e
}

// WithCause attaches an underlying cause.
func (e *ConclaveError) WithCause(err error) *ConclaveError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *ConclaveError) WithDetails(details map[string]any) *ConclaveError {
	e.Details = details
	return e
}

// HasCode reports whether err is a ConclaveError carrying the given code.
func HasCode(err error, code string) bool {
	var ce *ConclaveError
	return errors.As(err, &ce) && ce.Code == code
}
