package translate

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoKey is returned when a provider that needs a key has none.
	ErrNoKey = errors.New("translate: subscription key required")

	// ErrNoEndpoint is returned when the endpoint is empty or malformed.
	ErrNoEndpoint = errors.New("translate: endpoint required")

	// ErrUnknownProvider is returned by New for an unrecognized provider name.
	ErrUnknownProvider = errors.New("translate: unknown provider")

	// ErrNoDetection is returned when the service detected nothing.
	ErrNoDetection = errors.New("translate: no language detected")
)

// APIError represents an error response from a translation API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Code is the service error code, when the body carries one.
	Code int

	// Message is the error message from the API.
	Message string

	// Provider identifies which provider returned the error.
	Provider string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("translate [%s]: API error %d (%d): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("translate [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsUnauthorized returns true for HTTP 401.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsRateLimited returns true for HTTP 429.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable returns true if a caller may reasonably retry.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.StatusCode >= 500
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("translate [%s] %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

func wrap(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}
