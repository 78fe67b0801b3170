package speech

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoKey is returned when the subscription key is missing.
	ErrNoKey = errors.New("speech: subscription key required")

	// ErrNoRegion is returned when neither region nor endpoints are set.
	ErrNoRegion = errors.New("speech: region or endpoint required")

	// ErrUnsupportedLanguage is returned for a language not in the table.
	ErrUnsupportedLanguage = errors.New("speech: unsupported language")

	// ErrNoPermission is returned when capture starts without microphone access.
	ErrNoPermission = errors.New("speech: microphone permission not granted")

	// ErrRecognitionFailed is returned when the service reports an error status.
	ErrRecognitionFailed = errors.New("speech: recognition failed")

	// ErrEmptyAudio is returned when synthesis produced no audio.
	ErrEmptyAudio = errors.New("speech: synthesis returned no audio")

	// ErrMissingDependency is returned by NewTranscriber for a nil collaborator.
	ErrMissingDependency = errors.New("speech: missing dependency")
)

// APIError represents an error response from the speech service.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the response body, truncated.
	Message string

	// Op is "recognize" or "synthesize".
	Op string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("speech [%s]: API error %d: %s", e.Op, e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsUnauthorized returns true if this is an authentication error (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsForbidden returns true if this is a permission error (HTTP 403).
func (e *APIError) IsForbidden() bool {
	return e.StatusCode == http.StatusForbidden
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("speech [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
