package services

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map these to HTTP status codes.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrStorage      = errors.New("storage error")
)

// ErrCodeGenerationExhausted means no free referral code was found within the
// retry budget. It is a storage-kind failure, not a user error.
var ErrCodeGenerationExhausted = errors.New("referral code generation exhausted")

// DomainError is a categorised failure with a user-facing message
type DomainError struct {
	Kind    error
	Code    string
	Message string
	Details interface{}
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func validationError(code, message string, details interface{}) error {
	return &DomainError{Kind: ErrValidation, Code: code, Message: message, Details: details}
}

func notFoundError(message string) error {
	return &DomainError{Kind: ErrNotFound, Code: "NOT_FOUND", Message: message}
}

func conflictError(code, message string, details interface{}) error {
	return &DomainError{Kind: ErrConflict, Code: code, Message: message, Details: details}
}

func storageError(op string, err error) error {
	return &DomainError{Kind: ErrStorage, Code: "STORAGE_ERROR", Message: op, Err: err}
}
