package response

import "encoding/json"

// Envelope is the backend API's response shape as seen by a client. Data is
// kept raw so callers decode it into their own schema.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *ErrorDetail    `json:"error"`
}

// ErrorMessage picks the most specific human-readable message available.
func (e Envelope) ErrorMessage() string {
	if e.Error != nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return e.Message
}

// HasData reports whether the envelope carries a non-null payload.
func (e Envelope) HasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}
