package autherrors

import (
	"net/http"

	"go-surplus-storefront/internal/pkg/apperror"
)

var (
	ErrUnauthorized = apperror.New(
		apperror.CodeUnauthorized,
		"Please login to continue",
		http.StatusUnauthorized,
	)

	ErrTokenExpired = apperror.New(
		apperror.CodeUnauthorized,
		"Your session has expired, please login again",
		http.StatusUnauthorized,
	)

	ErrForbidden = apperror.New(
		apperror.CodeForbidden,
		"Access forbidden",
		http.StatusForbidden,
	)

	ErrInvalidCredentials = apperror.New(
		apperror.CodeValidation,
		"Email and password are required",
		http.StatusBadRequest,
	)

	ErrLoginFailed = apperror.New(
		apperror.CodeUnauthorized,
		"Login failed, please check your credentials",
		http.StatusUnauthorized,
	)
)
