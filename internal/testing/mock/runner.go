package mock

import (
	"context"
	"sync"

	"cloudphone/internal/health"
)

// Outcome is one scripted result of a health check.
type Outcome struct {
	Passed bool
	Err    error
}

// Runner is a scripted health.Runner. Checks are keyed by their String()
// form. Each key plays its script in order and then repeats the last entry;
// an unscripted check fails.
type Runner struct {
	mu      sync.Mutex
	scripts map[string][]Outcome
	calls   map[string]int
}

var _ health.Runner = (*Runner)(nil)

// NewRunner creates an empty scripted runner.
func NewRunner() *Runner {
	return &Runner{
		scripts: make(map[string][]Outcome),
		calls:   make(map[string]int),
	}
}

// Script sets the outcomes for check.
func (r *Runner) Script(check health.PredicateSpec, outcomes ...Outcome) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[check.String()] = outcomes
	return r
}

// Always makes check always pass or always fail.
func (r *Runner) Always(check health.PredicateSpec, passed bool) *Runner {
	return r.Script(check, Outcome{Passed: passed})
}

// Calls returns how often check was run.
func (r *Runner) Calls(check health.PredicateSpec) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[check.String()]
}

// Run implements health.Runner.
func (r *Runner) Run(_ context.Context, check health.PredicateSpec) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := check.String()
	n := r.calls[key]
	r.calls[key] = n + 1

	script := r.scripts[key]
	if len(script) == 0 {
		return false, nil
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n].Passed, script[n].Err
}
