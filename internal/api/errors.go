package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrJobTimeout is returned by WaitForJobCompletion when the job does not
// finish within the allowed time.
var ErrJobTimeout = errors.New("job completion timeout")

// JobFailedError is returned by WaitForJobCompletion for a job the backend
// marked failed.
type JobFailedError struct {
	JobID  string
	Reason string
}

func (e *JobFailedError) Error() string {
	return "job failed: " + e.Reason
}

// NetworkError means no HTTP response was received (no connectivity, DNS,
// connection refused). Callers render it differently from HTTP errors.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Message is the server-provided message
// when there was one, otherwise a generic status message.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

func newHTTPError(status int, serverMessage string) *HTTPError {
	if serverMessage == "" {
		serverMessage = fmt.Sprintf("HTTP error! status: %d", status)
	}
	return &HTTPError{StatusCode: status, Message: serverMessage}
}

// IsNetworkError reports whether err is (or wraps) a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusUnauthorized
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
