package spotify

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a non-2xx response from a Spotify endpoint.
type Error struct {
	Status int    // HTTP status code
	Body   string // Response body, truncated
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("spotify: status %d", e.Status)
	}
	return fmt.Sprintf("spotify: status %d: %s", e.Status, e.Body)
}

// Is reports whether target is an *Error with the same status.
//
// This allows errors.Is(err, &spotify.Error{Status: 404}) checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Status == t.Status
}

// Temporary returns true if the request should be retried.
//
// Server errors (5xx) are temporary. Rate limiting (429) is left to the
// caller's limiter and is not retried here.
func (e *Error) Temporary() bool {
	return e.Status >= http.StatusInternalServerError
}

// Unauthorized reports whether the bearer token was rejected.
func (e *Error) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Predefined errors for common cases.
var (
	// ErrInvalidURI is returned when a Spotify URI cannot be parsed.
	ErrInvalidURI = errors.New("spotify: invalid uri")
)
