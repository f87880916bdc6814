package carterrors

import (
	"errors"
	"net/http"

	"go-surplus-storefront/internal/pkg/apperror"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidInput = apperror.New(
		apperror.CodeValidation,
		"Invalid cart request",
		http.StatusBadRequest,
	)

	ErrInvalidQty = apperror.New(
		apperror.CodeValidation,
		"Quantity must be at least 1",
		http.StatusBadRequest,
	)

	ErrInvalidProductID = apperror.New(
		apperror.CodeValidation,
		"Please select a product",
		http.StatusBadRequest,
	)

	ErrInvalidItemID = apperror.New(
		apperror.CodeValidation,
		"Cart item not specified",
		http.StatusBadRequest,
	)

	ErrEmptyCoupon = apperror.New(
		apperror.CodeValidation,
		"Please enter a coupon code",
		http.StatusBadRequest,
	)

	ErrNoGuestSession = apperror.New(
		apperror.CodeNotFound,
		"No guest cart to merge",
		http.StatusNotFound,
	)
)

// MapValidationError turns validator output for a cart request into the
// matching user-facing error.
func MapValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ErrInvalidInput.Wrap(err)
	}

	switch verrs[0].Field() {
	case "Quantity":
		return ErrInvalidQty
	case "ProductID":
		return ErrInvalidProductID
	case "Code":
		return ErrEmptyCoupon
	case "SessionID":
		return ErrNoGuestSession
	default:
		return ErrInvalidInput.Wrap(err)
	}
}
