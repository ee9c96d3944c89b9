package utils

import (
	"errors"
	"fmt"
)

// ErrorRecordNotFound marks a stale reference: the caller named a row that
// does not exist. Distinct from ValidationError so API layers can map them
// to 404 vs 422.
var ErrorRecordNotFound = errors.New("record not found")

// ValidationError is a domain-rule failure on otherwise well-formed input.
type ValidationError struct {
	Field   string
	Message string
	// Shortfall is how many more of something the rule needs
	// (e.g. missing photo count). Zero when not applicable.
	Shortfall int
}

func (e *ValidationError) Error() string {
	if e.Shortfall > 0 {
		return fmt.Sprintf("%s: %s (missing %d)", e.Field, e.Message, e.Shortfall)
	}
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrorRecordNotFound)
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
