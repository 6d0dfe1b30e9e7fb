package supervisor

import (
	"context"
	"fmt"
	"time"
)

// Supervisor is the process supervisor the orchestrator delegates the actual
// start, stop and liveness operations to. Services are addressed by their
// registry name.
type Supervisor interface {
	// IsLive reports whether the service's process or container exists and
	// is not stopped. A failed query returns an error instead of a guess.
	IsLive(ctx context.Context, name string) (bool, error)

	// Start starts the service. Failures are *PrimitiveError.
	Start(ctx context.Context, name string) error

	// Stop stops the service. Failures are *PrimitiveError.
	Stop(ctx context.Context, name string) error

	// StopGroup stops the supervisory grouping that holds all services.
	StopGroup(ctx context.Context) error

	PID(ctx context.Context, name string) (int, bool)
	Uptime(ctx context.Context, name string) (time.Duration, bool)
	Memory(ctx context.Context, name string) (uint64, bool)

	// Dependencies returns the ordering metadata the supervisor holds for
	// the service.
	Dependencies(ctx context.Context, name string) (Dependencies, error)
}

// Dependencies is the supervisor's own ordering metadata for one service.
type Dependencies struct {
	// Requires must be live for the service to run.
	Requires []string `json:"requires,omitempty"`
	// Wants are pulled in but not strictly required.
	Wants []string `json:"wants,omitempty"`
	// After are ordered before the service when both start.
	After []string `json:"after,omitempty"`
}

// PrimitiveError reports that the supervisor rejected or failed a start or
// stop request.
type PrimitiveError struct {
	Op      string
	Service string
	Err     error
}

func (e *PrimitiveError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Service, e.Err)
}

func (e *PrimitiveError) Unwrap() error {
	return e.Err
}
