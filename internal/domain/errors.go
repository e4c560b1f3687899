package domain

import "errors"

// Error kinds. Service-level sentinels wrap one of these so the transport
// can classify any error with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

// ValidationError carries field level issues that can be shown to callers.
type ValidationError struct {
	FieldErrors map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{FieldErrors: make(map[string]string)}
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return ErrValidation.Error()
	}

	return ErrValidation.Error() + ": invalid " + v.firstField()
}

func (v *ValidationError) Unwrap() error {
	return ErrValidation
}

func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, ok := v.FieldErrors[field]; !ok {
		v.FieldErrors[field] = message
	}
}

func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// OrNil returns v when it holds field errors and nil otherwise.
func (v *ValidationError) OrNil() error {
	if v.HasErrors() {
		return v
	}

	return nil
}

func (v *ValidationError) firstField() string {
	first := ""
	for f := range v.FieldErrors {
		if first == "" || f < first {
			first = f
		}
	}

	return first
}

// Error is a caller-facing error of a given kind.
type Error struct {
	Kind    error
	Message string
}

// NewError returns an error that prints msg and matches kind with errors.Is.
func NewError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}
