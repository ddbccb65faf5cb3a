package llm

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned by the builder when no API key is supplied.
var ErrMissingAPIKey = errors.New("missing API key")

// ProviderError reports a failed model call (auth, rate limit, network).
// The wrapped error never carries the API key.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func newProviderError(p Provider, op string, err error) error {
	return &ProviderError{Provider: p.Name(), Model: p.Model(), Err: fmt.Errorf("%s: %w", op, err)}
}
