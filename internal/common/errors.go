package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Pipeline error taxonomy. Callers branch on these with errors.Is; anything
// not listed here is a downstream-fatal error and propagates so the queue can
// redeliver.
var (
	// ErrDuplicateRequest: the ledger already holds a COMPLETED record for
	// this key. Abstain from all side effects; not an error to the caller.
	ErrDuplicateRequest = errors.New("duplicate request")

	// ErrExtractionFailed: the vision call returned nothing usable.
	ErrExtractionFailed = errors.New("image extraction failed")

	// ErrNoFoodDetected: the vision model returned the no-food sentinel.
	ErrNoFoodDetected = errors.New("no food detected")

	// ErrEmptyModelResponse: a generation call succeeded at the transport
	// level but carried no content.
	ErrEmptyModelResponse = errors.New("empty model response")

	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
