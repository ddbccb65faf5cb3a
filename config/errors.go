package config

import (
	"errors"
	"fmt"
)

// ErrMissingCredential is wrapped when a provider API key is not set.
var ErrMissingCredential = errors.New("credential not set")

// ConfigurationError reports a missing or invalid setting.
type ConfigurationError struct {
	Key string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Key, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
