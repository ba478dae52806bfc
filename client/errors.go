package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthenticationRequired is returned for a protected endpoint when no access token is stored.
	// No request is sent.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrAuthenticationFailed is returned when the server rejected the access token and the refresh
	// did not succeed. The token store has been cleared; the user has to log in again.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrTransport is returned for unreachable backends when no fallback registry is configured.
	ErrTransport = errors.New("backend unreachable")
	// ErrInvalidResponse is returned when a successful response does not carry JSON.
	ErrInvalidResponse = errors.New("invalid response body")
)

// HTTPError is a non-2xx answer from a reachable server.
type HTTPError struct {
	Status   int
	Endpoint string
	Body     string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d %s", e.Endpoint, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s: HTTP %d %s: %s", e.Endpoint, e.Status, http.StatusText(e.Status), e.Body)
}

// transportError marks a failure to get any response from the server.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// StatusCode extracts the HTTP status from err, or 0 when err is not an *HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}
