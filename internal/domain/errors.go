// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicate        = errors.New("duplicate record")
	ErrWalletCannotSign = errors.New("wallet cannot sign transactions")
	ErrQuoteStale       = errors.New("quote does not match current trade parameters")
	ErrNoQuote          = errors.New("no quote available")
	ErrNotAdmin         = errors.New("public key is not the admin wallet")
	ErrBadSignature     = errors.New("invalid signature")
)

// ValidationError names the offending field so callers can show it next to the input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Invalid is shorthand for a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
