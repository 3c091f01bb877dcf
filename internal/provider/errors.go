package provider

import (
	"errors"
	"fmt"
)

// Manager-level failures. These surface to callers as hard errors because
// they indicate configuration problems, not runtime vendor conditions.
var (
	ErrNoProviderAvailable = errors.New("no provider available")
	ErrNoSuitableModel     = errors.New("no suitable model for requested operation")
)

// Kind classifies a provider-side failure for retry decisions.
type Kind string

const (
	KindUnavailable    Kind = "provider_unavailable"
	KindRateLimited    Kind = "rate_limited"
	KindInvalidRequest Kind = "invalid_request"
	KindAuth           Kind = "auth_failed"
	KindTimeout        Kind = "timeout"
)

// Error is the normalized form of anything a vendor call can go wrong with.
// Adapters never let raw vendor errors escape; they wrap them here so the
// base can decide whether to retry and the manager gets a readable message.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q %s (status %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q %s: %s", e.Provider, e.Kind, e.Message)
}

// Retryable reports whether the failure is transient. Credential and
// malformed-request failures fail immediately without retry.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindUnavailable, KindRateLimited, KindTimeout:
		return true
	default:
		return false
	}
}

// IsInvalidRequest reports whether err is a request validation failure.
func IsInvalidRequest(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindInvalidRequest
}
