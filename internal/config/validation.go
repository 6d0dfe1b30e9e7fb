package config

import (
	"fmt"
	"strings"

	"cloudphone/internal/containerizer"
)

// ValidationError reports one invalid setting.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors collects every invalid setting of one file so they can be
// fixed in a single pass.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	switch len(ve) {
	case 0:
		return "no validation errors"
	case 1:
		return ve[0].Error()
	}
	messages := make([]string, 0, len(ve))
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add records an invalid setting.
func (ve *ValidationErrors) Add(field, message string, value interface{}) {
	*ve = append(*ve, ValidationError{Field: field, Value: value, Message: message})
}

func (ve *ValidationErrors) oneOf(field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	ve.Add(field, "must be one of: "+strings.Join(allowed, ", "), value)
}

func (ve *ValidationErrors) notNegative(field string, d Duration) {
	if d < 0 {
		ve.Add(field, "must not be negative", d)
	}
}

// Validate checks the orchestrator settings. Service definitions are
// validated when the registry is built.
func (c Config) Validate() error {
	var errs ValidationErrors

	errs.oneOf("supervisor.bus", c.Supervisor.Bus, []string{BusSystem, BusUser})
	if _, err := containerizer.ParseRuntime(c.Containers.Runtime); err != nil {
		errs.Add("containers.runtime", "must be one of: "+strings.Join(containerizer.SupportedRuntimes(), ", "), c.Containers.Runtime)
	}
	errs.notNegative("poll.interval", c.Poll.Interval)
	errs.notNegative("restart.settleDelay", c.Restart.SettleDelay)
	errs.notNegative("escalation.promptTimeout", c.Escalation.PromptTimeout)

	if errs.HasErrors() {
		return errs
	}
	return nil
}
