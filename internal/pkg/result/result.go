// Package result holds the value-or-error outcome returned by client-side
// operations that never propagate errors to their callers.
package result

import (
	"go-surplus-storefront/internal/pkg/apperror"
)

// ErrorInfo is the normalized, user-presentable description of a failure.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

// Result is either a value or an ErrorInfo, never both.
type Result[T any] struct {
	value T
	err   *ErrorInfo
}

func OK[T any](v T) Result[T] {
	return Result[T]{value: v}
}

func Fail[T any](info ErrorInfo) Result[T] {
	return Result[T]{err: &info}
}

// FailWith normalizes err into an ErrorInfo, using fallback as the message
// when err carries no AppError.
func FailWith[T any](err error, fallback string) Result[T] {
	return Fail[T](Info(err, fallback))
}

func (r Result[T]) Success() bool {
	return r.err == nil
}

func (r Result[T]) Value() T {
	return r.value
}

func (r Result[T]) Err() *ErrorInfo {
	return r.err
}

// Message is the failure message, or "" on success.
func (r Result[T]) Message() string {
	if r.err == nil {
		return ""
	}
	return r.err.Message
}

func Info(err error, fallback string) ErrorInfo {
	h := apperror.ToHTTP(err)
	if _, ok := apperror.As(err); !ok || h.Message == "" {
		h.Message = fallback
	}
	return ErrorInfo{Code: h.Code, Message: h.Message, Status: h.Status}
}
