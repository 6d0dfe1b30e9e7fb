package health

import (
	"context"
	"time"

	"cloudphone/pkg/logging"
)

const pollerSubsystem = "HealthPoller"

// DefaultInterval is the pause between two predicate invocations.
const DefaultInterval = 2 * time.Second

// Clock abstracts the two time operations the poller and the lifecycle
// controller need, so tests can run without waiting.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Sleep pauses the calling goroutine for d.
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// Target is what the poller waits on: a named check with its deadline.
type Target struct {
	Name    string
	Check   PredicateSpec
	Timeout time.Duration
}

// Result is the outcome of WaitHealthy.
type Result struct {
	Healthy  bool
	Elapsed  time.Duration
	Attempts int
	// LastExecErr holds the most recent *ExecError, if any attempt failed
	// to execute.
	LastExecErr error
}

// Err returns nil for a healthy result and a *TimedOutError otherwise.
func (r Result) Err(t Target) error {
	if r.Healthy {
		return nil
	}
	return &TimedOutError{
		Service:     t.Name,
		Timeout:     t.Timeout,
		Attempts:    r.Attempts,
		LastExecErr: r.LastExecErr,
	}
}

// Poller repeatedly runs a target's predicate until it passes or the
// target's timeout elapses.
type Poller struct {
	Runner   Runner
	Interval time.Duration
	Clock    Clock

	// OnAttempt, if set, is called after every predicate invocation.
	OnAttempt func(t Target, attempt int, passed bool, elapsed time.Duration)
}

// NewPoller returns a Poller using the given runner, the default interval and
// the real clock.
func NewPoller(runner Runner) *Poller {
	return &Poller{
		Runner:   runner,
		Interval: DefaultInterval,
		Clock:    RealClock{},
	}
}

// WaitHealthy polls t.Check starting immediately. It returns as soon as one
// invocation passes. Once the elapsed time reaches t.Timeout it returns an
// unhealthy result without polling again. Execution errors count as failed
// attempts; only the timeout or a cancelled ctx ends the wait.
func (p *Poller) WaitHealthy(ctx context.Context, t Target) Result {
	clock := p.Clock
	if clock == nil {
		clock = RealClock{}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	start := clock.Now()
	var res Result

	for {
		res.Elapsed = clock.Now().Sub(start)
		if res.Elapsed >= t.Timeout {
			logging.Debug(pollerSubsystem, "%s: timeout of %s reached after %d checks", t.Name, t.Timeout, res.Attempts)
			return res
		}
		if err := ctx.Err(); err != nil {
			logging.Debug(pollerSubsystem, "%s: wait cancelled after %d checks: %v", t.Name, res.Attempts, err)
			return res
		}

		res.Attempts++
		passed, err := p.Runner.Run(ctx, t.Check)
		if err != nil {
			res.LastExecErr = err
			logging.Warn(pollerSubsystem, "%s: check %d could not run: %v", t.Name, res.Attempts, err)
		}

		elapsed := clock.Now().Sub(start)
		if p.OnAttempt != nil {
			p.OnAttempt(t, res.Attempts, passed, elapsed)
		}

		if passed {
			res.Healthy = true
			res.Elapsed = elapsed
			logging.Debug(pollerSubsystem, "%s: healthy after %d checks (%s)", t.Name, res.Attempts, elapsed.Round(time.Millisecond))
			return res
		}

		clock.Sleep(interval)
	}
}
