package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloudphone/internal/containerizer"
	"cloudphone/internal/health"
	"cloudphone/internal/services"
	"cloudphone/internal/supervisor"
	"cloudphone/internal/sysinfo"
	"cloudphone/pkg/logging"
)

const subsystem = "Orchestrator"

// DefaultSettleDelay is the pause between the stop and start phases of a
// restart.
const DefaultSettleDelay = 5 * time.Second

// Observer receives progress notifications during a run. The CLI uses it to
// drive a progress spinner.
type Observer interface {
	// Begin is called before the controller acts on a service.
	Begin(op services.Operation, spec services.ServiceSpec)
	// End is called once the service reached a terminal state for the run.
	End(op services.Operation, state services.RunState)
}

type noopObserver struct{}

func (noopObserver) Begin(services.Operation, services.ServiceSpec) {}
func (noopObserver) End(services.Operation, services.RunState)      {}

// Config holds the collaborators of the orchestrator.
type Config struct {
	Registry   *services.Registry
	Supervisor supervisor.Supervisor

	// Runner executes single health checks for Health. Defaults to
	// health.NewExecutor().
	Runner health.Runner
	// Poller waits for readiness during StartAll. Defaults to a poller over
	// Runner with the default interval.
	Poller *health.Poller

	// Escalation decides whether a start run continues after a failure.
	// Defaults to Unattended.
	Escalation EscalationPolicy

	// Containers and ContainerFilter feed the status snapshot. Optional.
	Containers      containerizer.ContainerRuntime
	ContainerFilter string
	// Memory reads host memory for the status snapshot. Optional.
	Memory sysinfo.MemoryReader

	SettleDelay time.Duration
	Clock       health.Clock
	Observer    Observer
}

// Orchestrator is the lifecycle controller. It walks the registry in
// priority order, drives the supervisor and the health poller, and owns the
// run state of every run it performs.
//
// It is not safe for concurrent use: one operation at a time.
type Orchestrator struct {
	registry   *services.Registry
	sup        supervisor.Supervisor
	runner     health.Runner
	poller     *health.Poller
	escalation EscalationPolicy

	containers      containerizer.ContainerRuntime
	containerFilter string
	memory          sysinfo.MemoryReader

	settleDelay time.Duration
	clock       health.Clock
	observer    Observer
}

// New creates a new orchestrator.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		registry:        cfg.Registry,
		sup:             cfg.Supervisor,
		runner:          cfg.Runner,
		poller:          cfg.Poller,
		escalation:      cfg.Escalation,
		containers:      cfg.Containers,
		containerFilter: cfg.ContainerFilter,
		memory:          cfg.Memory,
		settleDelay:     cfg.SettleDelay,
		clock:           cfg.Clock,
		observer:        cfg.Observer,
	}

	if o.clock == nil {
		o.clock = health.RealClock{}
	}
	if o.runner == nil {
		o.runner = health.NewExecutor()
	}
	if o.poller == nil {
		o.poller = health.NewPoller(o.runner)
		o.poller.Clock = o.clock
	}
	if o.escalation == nil {
		o.escalation = Unattended{}
	}
	if o.settleDelay <= 0 {
		o.settleDelay = DefaultSettleDelay
	}
	if o.observer == nil {
		o.observer = noopObserver{}
	}
	return o
}

func (o *Orchestrator) beginRun(op services.Operation, order []services.ServiceSpec) (*services.Run, func()) {
	run := services.NewRun(op, order, o.clock.Now())
	restore := logging.SetRunAttrs(slog.String("run", run.ID))
	return run, restore
}

// StartAll starts every service in ascending priority order, one at a time.
// A service is fully resolved (HEALTHY or FAILED) before the next one is
// touched. After each failure the escalation policy decides whether the run
// continues; on abort the remaining services stay PENDING. The policy is
// consulted for the last service too, with remaining set to zero.
//
// Cancelling ctx ends the run before the next service: the run is marked
// Interrupted and the services not yet reached stay PENDING.
//
// The number of failed services is run.FailedCount().
func (o *Orchestrator) StartAll(ctx context.Context) *services.Run {
	order := o.registry.StartOrder()
	run, restore := o.beginRun(services.OpStart, order)
	defer restore()

	logging.Info(subsystem, "Starting %d services", len(order))

	for i, spec := range order {
		if o.interrupted(ctx, run, len(order)-i) {
			break
		}
		state := run.Services[i]

		o.observer.Begin(services.OpStart, spec)
		o.startOne(ctx, spec, state)
		o.observer.End(services.OpStart, *state)

		if state.State != services.StateFailed || ctx.Err() != nil {
			continue
		}
		remaining := len(order) - i - 1
		if o.escalation.Escalate(ctx, *state, remaining) == Abort && remaining > 0 {
			run.Aborted = true
			logging.Warn(subsystem, "Start run aborted after %s failed; %d services left pending", spec.Name, remaining)
			break
		}
	}
	if !run.Interrupted {
		o.interrupted(ctx, run, 0)
	}

	run.Duration = o.clock.Now().Sub(run.StartedAt)
	if failed := run.FailedCount(); failed > 0 {
		logging.Warn(subsystem, "Start run finished with %d failed services", failed)
	} else if !run.Aborted && !run.Interrupted {
		logging.Info(subsystem, "All %d services healthy", len(order))
	}
	return run
}

// interrupted marks run as interrupted once ctx is done. pending is the
// number of services the run has not reached yet.
func (o *Orchestrator) interrupted(ctx context.Context, run *services.Run, pending int) bool {
	if ctx.Err() == nil {
		return false
	}
	run.Interrupted = true
	logging.Warn(subsystem, "%s run interrupted (%v); %d services left pending", run.Operation, ctx.Err(), pending)
	return true
}

func (o *Orchestrator) startOne(ctx context.Context, spec services.ServiceSpec, state *services.RunState) {
	live, err := o.sup.IsLive(ctx, spec.Name)
	if err != nil {
		logging.Warn(subsystem, "Could not tell whether %s is running, starting it: %v", spec.Name, err)
	}
	if live {
		state.State = services.StateHealthy
		state.Skipped = true
		state.Detail = "already running"
		logging.Info(subsystem, "%s is already running, skipping", spec.Name)
		return
	}

	state.State = services.StateStarting
	began := o.clock.Now()
	logging.Info(subsystem, "Starting %s (timeout %s)", spec.Name, spec.Timeout)

	if err := o.sup.Start(ctx, spec.Name); err != nil {
		state.Elapsed = o.clock.Now().Sub(began)
		state.Fail(err)
		logging.Error(subsystem, err, "Failed to start %s", spec.Name)
		return
	}

	target := spec.HealthTarget()
	res := o.poller.WaitHealthy(ctx, target)
	state.Elapsed = o.clock.Now().Sub(began)

	if res.Healthy {
		state.State = services.StateHealthy
		state.Detail = "healthy"
		logging.Info(subsystem, "%s is healthy (%s)", spec.Name, state.Elapsed.Round(time.Millisecond))
		return
	}

	if ctx.Err() != nil {
		state.Fail(fmt.Errorf("interrupted while waiting for %s to become healthy: %w", spec.Name, ctx.Err()))
		state.Detail = "interrupted"
		logging.Warn(subsystem, "Stopped waiting for %s: %v", spec.Name, ctx.Err())
		return
	}

	err = res.Err(target)
	state.Fail(err)
	state.Detail = "health check timed out"
	logging.Error(subsystem, err, "%s did not become healthy", spec.Name)
}

// StopAll stops every live service in descending priority order. Stop
// failures are recorded and logged but never end the run early. After the
// individual services, the supervisory group is stopped once.
//
// Cancelling ctx ends the run before the next service and skips the group
// stop; the services not yet reached stay PENDING.
func (o *Orchestrator) StopAll(ctx context.Context) *services.Run {
	order := o.registry.StopOrder()
	run, restore := o.beginRun(services.OpStop, order)
	defer restore()

	logging.Info(subsystem, "Stopping %d services", len(order))

	for i, spec := range order {
		if o.interrupted(ctx, run, len(order)-i) {
			break
		}
		state := run.Services[i]

		o.observer.Begin(services.OpStop, spec)
		o.stopOne(ctx, spec, state)
		o.observer.End(services.OpStop, *state)
	}
	if !run.Interrupted {
		o.interrupted(ctx, run, 0)
	}

	if !run.Interrupted {
		if err := o.sup.StopGroup(ctx); err != nil {
			run.GroupError = err.Error()
			logging.Error(subsystem, err, "Failed to stop service group")
		}
	}

	run.Duration = o.clock.Now().Sub(run.StartedAt)
	if failed := run.FailedCount(); failed > 0 {
		logging.Warn(subsystem, "Stop run finished with %d services that failed to stop", failed)
	} else if !run.Interrupted {
		logging.Info(subsystem, "All services stopped")
	}
	return run
}

func (o *Orchestrator) stopOne(ctx context.Context, spec services.ServiceSpec, state *services.RunState) {
	live, err := o.sup.IsLive(ctx, spec.Name)
	if err != nil {
		live = true
		logging.Warn(subsystem, "Could not tell whether %s is running, stopping it anyway: %v", spec.Name, err)
	}
	if !live {
		state.State = services.StateStopped
		state.Skipped = true
		state.Detail = "not running"
		logging.Debug(subsystem, "%s is not running", spec.Name)
		return
	}

	state.State = services.StateStopping
	began := o.clock.Now()
	logging.Info(subsystem, "Stopping %s", spec.Name)

	err = o.sup.Stop(ctx, spec.Name)
	state.Elapsed = o.clock.Now().Sub(began)
	if err != nil {
		state.Fail(err)
		logging.Error(subsystem, err, "Failed to stop %s, continuing", spec.Name)
		return
	}
	state.State = services.StateStopped
	state.Detail = "stopped"
}

// RestartAll runs StopAll, waits the settle delay, then runs StartAll. The
// returned run is the start phase; the stop phase is attached as Previous.
// An interrupted stop phase skips the settle delay and the start phase
// reports itself interrupted with every service PENDING.
func (o *Orchestrator) RestartAll(ctx context.Context) *services.Run {
	stopRun := o.StopAll(ctx)

	if ctx.Err() == nil {
		logging.Info(subsystem, "Waiting %s before starting services again", o.settleDelay)
		o.clock.Sleep(o.settleDelay)
	}

	startRun := o.StartAll(ctx)
	startRun.Operation = services.OpRestart
	startRun.Previous = stopRun
	return startRun
}
