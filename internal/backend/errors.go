package backend

import (
	"errors"
	"fmt"
)

// ErrTransport wraps failures to reach the backend at all.
var ErrTransport = errors.New("backend unreachable")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend returned status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// AsAPIError unwraps err into an *APIError when it is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
