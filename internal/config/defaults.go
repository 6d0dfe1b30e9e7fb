package config

import (
	"time"

	"cloudphone/internal/health"
)

const (
	// DefaultTarget is the systemd target grouping every cloud-phone unit.
	DefaultTarget = "cloudphone.target"

	// DefaultContainerFilter selects the Android containers for status.
	DefaultContainerFilter = "redroid"
)

// GetDefaultConfig returns the configuration used when no config.yaml
// exists: the four services of a cloud-phone host.
func GetDefaultConfig() Config {
	return Config{
		Supervisor: SupervisorConfig{
			Bus:    BusSystem,
			Target: DefaultTarget,
		},
		Poll: PollConfig{
			Interval: Duration(2 * time.Second),
		},
		Restart: RestartConfig{
			SettleDelay: Duration(5 * time.Second),
		},
		Escalation: EscalationConfig{
			PromptTimeout: Duration(60 * time.Second),
		},
		Containers: ContainersConfig{
			Runtime: "docker",
			Filter:  DefaultContainerFilter,
		},
		Services: []ServiceDefinition{
			{
				Name:        "redroid",
				Description: "Android container runtime",
				Priority:    10,
				Timeout:     Duration(120 * time.Second),
				Health: health.PredicateSpec{
					Type:    health.TypePort,
					Address: "127.0.0.1:5555",
				},
			},
			{
				Name:        "stream-bridge",
				Description: "Camera and microphone streaming bridge",
				Priority:    20,
				Timeout:     Duration(30 * time.Second),
				Health: health.PredicateSpec{
					Type:    health.TypeProcess,
					Process: "ffmpeg",
				},
			},
			{
				Name:        "control-api",
				Description: "REST control endpoint",
				Priority:    30,
				Timeout:     Duration(20 * time.Second),
				Health: health.PredicateSpec{
					Type: health.TypeHTTP,
					URL:  "http://127.0.0.1:8000/health",
				},
			},
			{
				Name:        "log-aggregator",
				Description: "Log aggregator",
				Priority:    40,
				Timeout:     Duration(15 * time.Second),
				Health: health.PredicateSpec{
					Type: health.TypeFile,
					Path: "/run/cloudphone/log-aggregator.ready",
				},
			},
		},
	}
}
