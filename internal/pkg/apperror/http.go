package apperror

import (
	"context"
	"errors"
	"net/http"
)

// StatusClientClosedRequest is reported when the browser went away before
// the backend answered.
const StatusClientClosedRequest = 499

type HTTPError struct {
	Status  int
	Code    string
	Message string
}

// ToHTTP maps err to the status and code the BFF answers with. Unknown
// errors become 500 with a generic message; backend timeouts are network
// errors so the client can retry.
func ToHTTP(err error) *HTTPError {
	if err == nil {
		return &HTTPError{Status: http.StatusOK}
	}

	if appErr, ok := As(err); ok {
		return &HTTPError{
			Status:  appErr.HTTPStatus,
			Code:    appErr.Code,
			Message: appErr.Message,
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &HTTPError{
			Status:  http.StatusGatewayTimeout,
			Code:    CodeNetwork,
			Message: "The marketplace did not respond in time",
		}
	case errors.Is(err, context.Canceled):
		return &HTTPError{
			Status:  StatusClientClosedRequest,
			Code:    CodeNetwork,
			Message: "Request cancelled",
		}
	}

	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternalError,
		Message: "internal server error",
	}
}
