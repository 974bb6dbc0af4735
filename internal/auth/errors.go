package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClockFetch is returned when the server time cannot be determined.
	ErrClockFetch = errors.New("server time fetch failed")

	// ErrSecretFetch is returned when the TOTP secret set cannot be loaded.
	ErrSecretFetch = errors.New("totp secret fetch failed")

	// ErrNoSecrets is returned when a code is requested before any secrets are loaded.
	ErrNoSecrets = errors.New("no totp secrets loaded")

	// ErrTokenValidation is returned when the token endpoint hands out a token
	// that the Web API refuses.
	ErrTokenValidation = errors.New("token validation failed")

	// ErrRefreshFailed is returned when every refresh attempt failed.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrNoToken is returned when no access token has ever been obtained.
	ErrNoToken = errors.New("no access token available")

	// ErrMissingCookie is returned when a session is created without an sp_dc cookie.
	ErrMissingCookie = errors.New("sp_dc cookie is required")
)

// totpVersionExpiredMarker appears in token endpoint error bodies once the
// secret version we sent has been retired.
const totpVersionExpiredMarker = "totpVerExpired"

// maxTokenErrorBody bounds the body kept on a TokenError.
const maxTokenErrorBody = 200

// TokenError represents a non-2xx response from the token endpoint.
type TokenError struct {
	Status int    // HTTP status code
	Body   string // Response body, truncated

	versionExpired bool
}

// newTokenError builds a TokenError from a full response body. The expired
// marker is looked up before the body is truncated.
func newTokenError(status int, body []byte) *TokenError {
	expired := strings.Contains(string(body), totpVersionExpiredMarker)
	if len(body) > maxTokenErrorBody {
		body = body[:maxTokenErrorBody]
	}
	return &TokenError{Status: status, Body: string(body), versionExpired: expired}
}

// Error returns the error message.
func (e *TokenError) Error() string {
	return fmt.Sprintf("token endpoint: status %d: %s", e.Status, e.Body)
}

// TOTPVersionExpired reports whether the server rejected the secret version.
func (e *TokenError) TOTPVersionExpired() bool {
	return e.versionExpired || strings.Contains(e.Body, totpVersionExpiredMarker)
}
