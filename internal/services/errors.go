package services

import (
	"errors"
	"fmt"
)

// ConfigError reports a malformed service registry. It is fatal: no
// orchestration operation runs when the registry cannot be built.
type ConfigError struct {
	// Service is the offending entry's name, empty when not attributable.
	Service string
	// Field is the offending field (name, priority, timeout, health).
	Field   string
	Message string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	switch {
	case e.Service != "" && e.Field != "":
		return fmt.Sprintf("invalid service %q: %s: %s", e.Service, e.Field, e.Message)
	case e.Service != "":
		return fmt.Sprintf("invalid service %q: %s", e.Service, e.Message)
	default:
		return "invalid service registry: " + e.Message
	}
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
