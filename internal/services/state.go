package services

import (
	"time"

	"github.com/google/uuid"
)

// State is the per-run lifecycle state of a service.
type State string

const (
	StatePending  State = "PENDING"
	StateStarting State = "STARTING"
	StateHealthy  State = "HEALTHY"
	StateFailed   State = "FAILED"
	StateStopping State = "STOPPING"
	StateStopped  State = "STOPPED"
)

// IsTerminal reports whether no further transition happens within a run.
func (s State) IsTerminal() bool {
	return s == StateHealthy || s == StateFailed || s == StateStopped
}

// RunState is the transient state of one service during one orchestration
// run. Only the lifecycle controller mutates it.
type RunState struct {
	Name      string        `json:"name"`
	State     State         `json:"state"`
	Elapsed   time.Duration `json:"elapsed"`
	LastError string        `json:"lastError,omitempty"`
	// Skipped is set when the service was already in the desired condition
	// and no primitive was invoked for it.
	Skipped bool   `json:"skipped,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Fail moves the service to FAILED and records err.
func (s *RunState) Fail(err error) {
	s.State = StateFailed
	if err != nil {
		s.LastError = err.Error()
	}
}

// Operation names an orchestration run.
type Operation string

const (
	OpStart   Operation = "start"
	OpStop    Operation = "stop"
	OpRestart Operation = "restart"
)

// Run holds the run states of every registered service for one
// orchestration run, in the order the run processed them. It is discarded
// when the run ends.
type Run struct {
	ID        string        `json:"id"`
	Operation Operation     `json:"operation"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Services  []*RunState   `json:"services"`
	// Aborted is set when the escalation policy stopped a start run early.
	Aborted bool `json:"aborted,omitempty"`
	// Interrupted is set when the run's context was cancelled before every
	// service was reached.
	Interrupted bool `json:"interrupted,omitempty"`
	// GroupError records a failure of the aggregate stop step.
	GroupError string `json:"groupError,omitempty"`
	// Previous is the stop phase of a restart.
	Previous *Run `json:"previous,omitempty"`
}

// NewRun creates a run with every service PENDING, in the given order.
func NewRun(op Operation, order []ServiceSpec, now time.Time) *Run {
	r := &Run{
		ID:        uuid.NewString(),
		Operation: op,
		StartedAt: now,
		Services:  make([]*RunState, len(order)),
	}
	for i, s := range order {
		r.Services[i] = &RunState{Name: s.Name, State: StatePending}
	}
	return r
}

// State returns the run state of a service, or nil when it is not part of
// the run.
func (r *Run) State(name string) *RunState {
	for _, s := range r.Services {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// FailedCount returns the number of services that ended FAILED.
func (r *Run) FailedCount() int {
	n := 0
	for _, s := range r.Services {
		if s.State == StateFailed {
			n++
		}
	}
	return n
}

// Count returns the number of services currently in state.
func (r *Run) Count(state State) int {
	n := 0
	for _, s := range r.Services {
		if s.State == state {
			n++
		}
	}
	return n
}
