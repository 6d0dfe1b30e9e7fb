package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"cloudphone/internal/health"
	"cloudphone/internal/services"
)

// Config is the top-level configuration structure for cloudphone.
type Config struct {
	Supervisor SupervisorConfig    `yaml:"supervisor"`
	Poll       PollConfig          `yaml:"poll"`
	Restart    RestartConfig       `yaml:"restart"`
	Escalation EscalationConfig    `yaml:"escalation"`
	Containers ContainersConfig    `yaml:"containers"`
	Services   []ServiceDefinition `yaml:"services"`
}

// Supervisor bus names.
const (
	BusSystem = "system"
	BusUser   = "user"
)

// SupervisorConfig selects the systemd instance and the target that groups
// all services.
type SupervisorConfig struct {
	Bus    string `yaml:"bus,omitempty"`    // system (default) or user
	Target string `yaml:"target,omitempty"` // group stopped after all services (default: cloudphone.target)
}

// PollConfig configures the health poller.
type PollConfig struct {
	Interval Duration `yaml:"interval,omitempty"` // pause between checks (default: 2s)
}

// RestartConfig configures restart.
type RestartConfig struct {
	SettleDelay Duration `yaml:"settleDelay,omitempty"` // pause between stop and start (default: 5s)
}

// EscalationConfig configures what happens when a service fails to start.
type EscalationConfig struct {
	Unattended    bool     `yaml:"unattended,omitempty"`    // never prompt, always continue
	PromptTimeout Duration `yaml:"promptTimeout,omitempty"` // abort when the operator does not answer in time (default: 60s)
}

// ContainersConfig configures the container snapshot shown by status.
type ContainersConfig struct {
	Runtime string `yaml:"runtime,omitempty"` // docker (default) or podman
	Filter  string `yaml:"filter,omitempty"`  // container name filter
}

// ServiceDefinition is one entry of the services list.
type ServiceDefinition struct {
	Name        string               `yaml:"name"`
	Unit        string               `yaml:"unit,omitempty"`
	Description string               `yaml:"description,omitempty"`
	Priority    int                  `yaml:"priority"`
	Timeout     Duration             `yaml:"timeout"`
	Health      health.PredicateSpec `yaml:"health"`
}

// Spec converts the definition into a registry entry.
func (d ServiceDefinition) Spec() services.ServiceSpec {
	return services.ServiceSpec{
		Name:        d.Name,
		Unit:        d.Unit,
		Description: d.Description,
		Priority:    d.Priority,
		Timeout:     d.Timeout.Duration(),
		Health:      d.Health,
	}
}

// Registry builds the service registry from the configured services. The
// error wraps one *services.ConfigError per problem.
func (c Config) Registry() (*services.Registry, error) {
	specs := make([]services.ServiceSpec, len(c.Services))
	for i, d := range c.Services {
		specs[i] = d.Spec()
	}
	return services.NewRegistry(specs...)
}

// Duration is a time.Duration that decodes from either a Go duration string
// ("90s", "2m") or a plain integer number of seconds.
type Duration time.Duration

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	parsed, err := ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// ParseDuration accepts a Go duration string or an integer number of
// seconds.
func ParseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: use seconds or a duration like 30s", s)
	}
	return d, nil
}
