package inference

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoAPIKey  = errors.New("inference: API key required")
	ErrNoModel   = errors.New("inference: model required")
	ErrNoChoices = errors.New("inference: no choices returned")
	ErrNoImage   = errors.New("inference: image required")
)

// APIError is a non-200 answer from the completions endpoint. Code is the
// provider's machine-readable code, e.g. "invalid_api_key" or DashScope's
// "DataInspectionFailed".
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

func (e *APIError) Error() string {
	status := fmt.Sprintf("API error %d", e.StatusCode)
	if e.Code != "" {
		status += " (" + e.Code + ")"
	}
	return fmt.Sprintf("inference [%s]: %s: %s", e.Provider, status, e.Message)
}

// IsUnauthorized reports a rejected API key.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsRetryable reports rate limiting and 5xx answers.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// ProviderError is a failure that never reached an HTTP status: dial,
// timeout, or an undecodable body.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return "inference [" + e.Provider + "]: " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError attaches the provider name to err. It returns nil for nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// Retryable reports whether err is an APIError worth repeating.
func Retryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsRetryable()
}
