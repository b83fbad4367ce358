package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Unauthorized returns an AppError for requests with no valid session.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// InvalidCredentials returns the deliberately vague sign-in failure. The
// message is identical whether the identifier was unknown or the password
// was wrong, so callers can't probe which accounts exist.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "invalid login or password",
	}
}

// AccountLocked is reported distinctly from a bad password — a locked user
// typing their correct password should learn the account is locked, not that
// their credentials are wrong.
func AccountLocked() *AppError {
	return &AppError{
		Err:     ErrAccountLocked,
		Message: "account is locked",
	}
}

// Fields collects field-scoped validation failures from checking one input
// struct. It implements error so a service can return the whole batch and
// the handler can render every message against its field at once.
type Fields []*AppError

func (f Fields) Error() string {
	if len(f) == 0 {
		return "validation error"
	}
	return f[0].Message
}

func (f Fields) Unwrap() error {
	return ErrValidation
}

// Add appends a field-scoped validation failure.
func (f *Fields) Add(field, message string) {
	*f = append(*f, ValidationFailed(field, message))
}

// OrNil returns the batch as an error, or nil when no failure was recorded.
// Returning a typed nil-ish empty slice as error would always be non-nil,
// hence this helper.
func (f Fields) OrNil() error {
	if len(f) == 0 {
		return nil
	}
	return f
}
