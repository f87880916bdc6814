package apperror

import (
	"errors"
	"net/http"
)

const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodeValidation      = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeNetwork         = "NETWORK_ERROR"
	CodeBackend         = "BACKEND_ERROR"
	CodeInvalidResponse = "INVALID_RESPONSE"
	CodeInternalError   = "INTERNAL_ERROR"
)

// AppError is an error carrying a stable code, a user-facing message and
// the HTTP status it maps to. Errors derived with WithMessage or Wrap still
// match their origin under errors.Is.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int

	cause  error
	origin *AppError
}

func New(code, message string, status int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e == t || (e.origin != nil && e.origin == t)
}

// WithMessage returns a copy of e with a different message, e.g. the one
// reported by the backend.
func (e *AppError) WithMessage(message string) *AppError {
	cp := e.derive()
	if message != "" {
		cp.Message = message
	}
	return cp
}

// WithStatus returns a copy of e that maps to status.
func (e *AppError) WithStatus(status int) *AppError {
	cp := e.derive()
	cp.HTTPStatus = status
	return cp
}

// Wrap returns a copy of e that records err as its cause.
func (e *AppError) Wrap(err error) *AppError {
	cp := e.derive()
	cp.cause = err
	return cp
}

func (e *AppError) derive() *AppError {
	cp := *e
	if e.origin != nil {
		cp.origin = e.origin
	} else {
		cp.origin = e
	}
	return &cp
}

// As extracts the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

var (
	ErrNetwork = New(
		CodeNetwork,
		"Unable to reach the server, please try again",
		http.StatusBadGateway,
	)

	ErrBackend = New(
		CodeBackend,
		"Something went wrong, please try again",
		http.StatusBadGateway,
	)

	ErrInvalidResponse = New(
		CodeInvalidResponse,
		"Received an unexpected response from the server",
		http.StatusBadGateway,
	)

	ErrInternal = New(
		CodeInternalError,
		"internal server error",
		http.StatusInternalServerError,
	)
)
