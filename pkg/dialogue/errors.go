package dialogue

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the dialogue package.
var (
	// ErrMissingSecret indicates no Direct Line secret was configured.
	ErrMissingSecret = errors.New("dialogue: direct line secret is required")

	// ErrInvalidEndpoint indicates the endpoint could not be parsed.
	ErrInvalidEndpoint = errors.New("dialogue: invalid endpoint")

	// ErrInsecureEndpoint indicates the endpoint is not https.
	ErrInsecureEndpoint = errors.New("dialogue: endpoint must be https")

	// ErrInvalidPolling indicates a non-positive poll budget.
	ErrInvalidPolling = errors.New("dialogue: poll attempts must be positive")

	// ErrNoToken indicates token generation succeeded without returning a token.
	ErrNoToken = errors.New("dialogue: no token returned")

	// ErrNoConversation indicates conversation start returned no ID.
	ErrNoConversation = errors.New("dialogue: no conversation id returned")

	// ErrNotConnected indicates no conversation is active.
	ErrNotConnected = errors.New("dialogue: not connected")

	// ErrTimeout indicates the poll budget ran out without a new reply.
	ErrTimeout = errors.New("dialogue: poll timeout")

	// ErrAuthExpired indicates authentication failed again after a session rebuild.
	ErrAuthExpired = errors.New("dialogue: authentication expired")
)

// APIError represents a non-success response from the Direct Line API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Code is the Direct Line error code, if any.
	Code string

	// Message is the human-readable error message.
	Message string

	// Op names the request that failed.
	Op string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("dialogue: %s failed (HTTP %d) [%s]: %s", e.Op, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("dialogue: %s failed (HTTP %d): %s", e.Op, e.StatusCode, e.Message)
}

// IsUnauthorized returns true for HTTP 401.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsForbidden returns true for HTTP 403.
func (e *APIError) IsForbidden() bool {
	return e.StatusCode == http.StatusForbidden
}

// IsAuth returns true for either authentication status.
func (e *APIError) IsAuth() bool {
	return e.IsUnauthorized() || e.IsForbidden()
}

// IsRetryable returns true if the request can be retried as-is.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	if errors.Is(err, ErrAuthExpired) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsAuth()
}

// IsTimeout reports whether err is a poll timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
