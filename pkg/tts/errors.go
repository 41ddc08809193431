package tts

import (
	"errors"
	"fmt"
)

var (
	ErrNoAPIKey     = errors.New("tts: API key required")
	ErrInvalidSpeed = errors.New("tts: speed must be between 0.25 and 4.0")
	ErrEmptyText    = errors.New("tts: empty text")
)

// APIError is a non-200 answer from the speech endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	return fmt.Sprintf("tts [%s]: status %d: %s", e.Provider, e.StatusCode, msg)
}

// IsRetryable reports rate limiting and 5xx answers.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ProviderError is a transport failure talking to Provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string { return "tts [" + e.Provider + "]: " + e.Err.Error() }

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError attaches the provider name to err. It returns nil for nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
