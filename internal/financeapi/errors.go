package financeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized is wrapped by the *APIError of a 401 response on an
// authenticated path.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response from the finance backend. Detail and
// Message are decoded once from the error body so callers never inspect
// raw JSON.
type APIError struct {
	StatusCode int
	Detail     string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Message
	}
	if msg == "" {
		return fmt.Sprintf("finance api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("finance api: status %d: %s", e.StatusCode, msg)
}

func (e *APIError) Unwrap() error { return e.Err }

// UserMessage returns the backend's detail, then its message, then fallback.
func (e *APIError) UserMessage(fallback string) string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Message != "" {
		return e.Message
	}
	return fallback
}

// errorBody is the JSON error shape of the backend (problem details or a
// plain message).
type errorBody struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Detail = strings.TrimSpace(eb.Detail)
		apiErr.Message = strings.TrimSpace(eb.Message)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(eb.Error)
		}
	}
	return apiErr
}

// IsUnauthorized reports whether err is a rejected credential.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// StatusCode returns the HTTP status of an *APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
