package config

import (
	"fmt"
)

// LoadError reports that config.yaml could not be read, rendered or parsed.
type LoadError struct {
	Path  string
	Stage string // read, template or parse
	Err   error
}

// Error implements the error interface
func (e *LoadError) Error() string {
	return fmt.Sprintf("error loading config from %s (%s): %v", e.Path, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
