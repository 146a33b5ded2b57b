// Package apperr defines the error kinds shared by repositories, services and
// HTTP handlers. Handlers translate kinds to status codes; nothing below the
// HTTP layer knows about status codes.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInternal          = errors.New("internal error")
)

var (
	// ErrEmailTaken is returned when registration hits an existing email.
	ErrEmailTaken = &Error{Kind: ErrConflict, Message: "Пользователь с таким email уже существует"}
	// ErrDuplicateSubmission is returned when a user who already owns an NPO submits another.
	ErrDuplicateSubmission = &Error{Kind: ErrConflict, Message: "Вы уже создали организацию. К одному аккаунту может быть привязана только одна НКО."}
)

// Error is a kinded error carrying a client-safe message and an optional cause.
type Error struct {
	Kind    error
	Message string
	Fields  map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) *Error {
	return &Error{Kind: ErrValidation, Message: message}
}

// ValidationFields builds a validation error listing the offending fields.
func ValidationFields(message string, fields map[string]string) *Error {
	return &Error{Kind: ErrValidation, Message: message, Fields: fields}
}

func NotFound(message string) *Error {
	return &Error{Kind: ErrNotFound, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: ErrForbidden, Message: message}
}

func Unauthenticated(message string) *Error {
	return &Error{Kind: ErrUnauthenticated, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: ErrConflict, Message: message}
}

func InvalidTransition(message string) *Error {
	return &Error{Kind: ErrInvalidTransition, Message: message}
}

func Internal(message string, cause error) *Error {
	return &Error{Kind: ErrInternal, Message: message, Cause: cause}
}

// KindOf reports the kind of err, defaulting to ErrInternal for unknown errors.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrValidation,
		ErrUnauthenticated,
		ErrForbidden,
		ErrNotFound,
		ErrInvalidTransition,
		ErrConflict,
		ErrInternal,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}

// MessageOf returns the client-safe message of err, or fallback when err is not kinded.
func MessageOf(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

// FieldsOf returns per-field validation details, if any.
func FieldsOf(err error) map[string]string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Fields
	}
	return nil
}
