package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudphone/internal/health"
	"cloudphone/internal/services"
	"cloudphone/internal/testing/mock"
)

var (
	checkA = health.PredicateSpec{Type: health.TypePort, Address: "127.0.0.1:5555"}
	checkB = health.PredicateSpec{Type: health.TypeProcess, Process: "ffmpeg"}
	checkC = health.PredicateSpec{Type: health.TypeHTTP, URL: "http://127.0.0.1:8000/health"}
)

func testRegistry(t *testing.T, specs ...services.ServiceSpec) *services.Registry {
	t.Helper()
	if len(specs) == 0 {
		specs = []services.ServiceSpec{
			{Name: "c", Priority: 30, Timeout: 20 * time.Second, Health: checkC},
			{Name: "a", Priority: 10, Timeout: 10 * time.Second, Health: checkA},
			{Name: "b", Priority: 20, Timeout: 5 * time.Second, Health: checkB},
		}
	}
	reg, err := services.NewRegistry(specs...)
	require.NoError(t, err)
	return reg
}

type fixture struct {
	sup    *mock.Supervisor
	runner *mock.Runner
	clock  *mock.MockClock
	orch   *Orchestrator
}

func newFixture(t *testing.T, reg *services.Registry, esc EscalationPolicy) *fixture {
	t.Helper()
	f := &fixture{
		sup:    mock.NewSupervisor(),
		runner: mock.NewRunner(),
		clock:  mock.NewMockClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)),
	}
	f.orch = New(Config{
		Registry:   reg,
		Supervisor: f.sup,
		Runner:     f.runner,
		Escalation: esc,
		Clock:      f.clock,
	})
	return f
}

type fixedPolicy struct {
	decision  Decision
	calls     []string
	remaining []int
}

func (p *fixedPolicy) Escalate(_ context.Context, failed services.RunState, remaining int) Decision {
	p.calls = append(p.calls, failed.Name)
	p.remaining = append(p.remaining, remaining)
	return p.decision
}

type recordingObserver struct {
	begun []string
	ended []services.RunState
}

func (r *recordingObserver) Begin(_ services.Operation, spec services.ServiceSpec) {
	r.begun = append(r.begun, spec.Name)
}

func (r *recordingObserver) End(_ services.Operation, state services.RunState) {
	r.ended = append(r.ended, state)
}

func TestStartAll_HealthyAndTimedOut(t *testing.T) {
	reg := testRegistry(t,
		services.ServiceSpec{Name: "a", Priority: 10, Timeout: 10 * time.Second, Health: checkA},
		services.ServiceSpec{Name: "b", Priority: 20, Timeout: 5 * time.Second, Health: checkB},
	)
	f := newFixture(t, reg, nil)
	f.runner.Always(checkA, true).Always(checkB, false)

	run := f.orch.StartAll(context.Background())

	assert.Equal(t, services.OpStart, run.Operation)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, services.StateHealthy, run.State("a").State)
	assert.Equal(t, services.StateFailed, run.State("b").State)
	assert.Equal(t, 1, run.FailedCount())
	assert.False(t, run.Aborted)

	b := run.State("b")
	assert.Contains(t, b.LastError, "did not become healthy within 5s")
	assert.GreaterOrEqual(t, b.Elapsed, 5*time.Second)
	assert.LessOrEqual(t, b.Elapsed, 5*time.Second+health.DefaultInterval)
	assert.Equal(t, 3, f.runner.Calls(checkB))
}

func TestStartAll_PriorityOrder(t *testing.T) {
	f := newFixture(t, testRegistry(t), nil)
	f.runner.Always(checkA, true).Always(checkB, true).Always(checkC, true)

	run := f.orch.StartAll(context.Background())

	assert.Equal(t, []string{"a", "b", "c"}, f.sup.CallsFor("start"))
	assert.Equal(t, 3, run.Count(services.StateHealthy))
	assert.Equal(t, 0, run.FailedCount())
}

func TestStartAll_ResolvesEachServiceBeforeNext(t *testing.T) {
	f := newFixture(t, testRegistry(t), nil)
	f.runner.Script(checkA, mock.Outcome{}, mock.Outcome{}, mock.Outcome{Passed: true})
	f.runner.Always(checkB, true).Always(checkC, true)

	obs := &recordingObserver{}
	f.orch.observer = obs

	f.orch.StartAll(context.Background())

	require.Len(t, obs.ended, 3)
	assert.Equal(t, []string{"a", "b", "c"}, obs.begun)
	for _, st := range obs.ended {
		assert.True(t, st.State.IsTerminal(), "%s ended in %s", st.Name, st.State)
	}
	assert.Equal(t, 3, f.runner.Calls(checkA))
	assert.Equal(t, []time.Duration{health.DefaultInterval, health.DefaultInterval}, f.clock.Sleeps())
}

func TestStartAll_AlreadyLiveIsSkipped(t *testing.T) {
	f := newFixture(t, testRegistry(t), nil)
	f.sup.SetLive("a", true)
	f.sup.SetLive("b", true)
	f.sup.SetLive("c", true)

	run := f.orch.StartAll(context.Background())

	assert.Empty(t, f.sup.CallsFor("start"))
	assert.Equal(t, 3, run.Count(services.StateHealthy))
	for _, st := range run.Services {
		assert.True(t, st.Skipped)
		assert.Equal(t, "already running", st.Detail)
	}
	assert.Equal(t, 0, f.runner.Calls(checkA), "already live services are not health checked")
}

func TestStartAll_StartPrimitiveFails(t *testing.T) {
	f := newFixture(t, testRegistry(t), nil)
	f.sup.FailStart("b", errors.New("unit not found"))
	f.runner.Always(checkA, true).Always(checkC, true)

	run := f.orch.StartAll(context.Background())

	b := run.State("b")
	assert.Equal(t, services.StateFailed, b.State)
	assert.Contains(t, b.LastError, "unit not found")
	assert.Equal(t, 0, f.runner.Calls(checkB))
	assert.Equal(t, services.StateHealthy, run.State("c").State, "unattended run continues")
	assert.Equal(t, 1, run.FailedCount())
}

func TestStartAll_Escalation(t *testing.T) {
	tests := []struct {
		name        string
		decision    Decision
		expectC     services.State
		expectAbort bool
		expectStart []string
	}{
		{
			name:        "continue",
			decision:    Continue,
			expectC:     services.StateHealthy,
			expectStart: []string{"a", "b", "c"},
		},
		{
			name:        "abort leaves the rest pending",
			decision:    Abort,
			expectC:     services.StatePending,
			expectAbort: true,
			expectStart: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := &fixedPolicy{decision: tt.decision}
			f := newFixture(t, testRegistry(t), policy)
			f.runner.Always(checkA, true).Always(checkB, false).Always(checkC, true)

			run := f.orch.StartAll(context.Background())

			assert.Equal(t, []string{"b"}, policy.calls)
			assert.Equal(t, tt.expectAbort, run.Aborted)
			assert.Equal(t, tt.expectC, run.State("c").State)
			assert.Equal(t, tt.expectStart, f.sup.CallsFor("start"))
			assert.Equal(t, 1, run.FailedCount())
		})
	}
}

func TestStartAll_EscalatesLastServiceWithNothingRemaining(t *testing.T) {
	policy := &fixedPolicy{decision: Abort}
	f := newFixture(t, testRegistry(t), policy)
	f.runner.Always(checkA, true).Always(checkB, true).Always(checkC, false)

	run := f.orch.StartAll(context.Background())

	assert.Equal(t, []string{"c"}, policy.calls)
	assert.Equal(t, []int{0}, policy.remaining)
	assert.False(t, run.Aborted, "nothing is left to abort")
	assert.Equal(t, 1, run.FailedCount())
}

func TestStartAll_AttendedEmptyAnswerAborts(t *testing.T) {
	prompter := &scriptedPrompter{answers: []string{""}}
	f := newFixture(t, testRegistry(t), Attended{Prompter: prompter})
	f.runner.Always(checkA, false).Always(checkB, true).Always(checkC, true)

	run := f.orch.StartAll(context.Background())

	assert.True(t, run.Aborted)
	assert.Equal(t, services.StateFailed, run.State("a").State)
	assert.Equal(t, services.StatePending, run.State("b").State)
	assert.Equal(t, services.StatePending, run.State("c").State)
	assert.Equal(t, []string{"a"}, f.sup.CallsFor("start"))
	require.Len(t, prompter.questions, 1)
	assert.Contains(t, prompter.questions[0], "remaining 2 services")
}

func TestStopAll_ReverseOrderAndGroup(t *testing.T) {
	f := newFixture(t, testRegistry(t), nil)
	f.sup.SetLive("a", true)
	f.sup.SetLive("b", true)
	f.sup.SetLive("c", true)

	run := f.orch.StopAll(context.Background())

	assert.Equal(t, services.OpStop, run.Operation)
	assert.Equal(t, []mock.Call{
		{Op: "stop", Service: "c"},
		{Op: "stop", Service: "b"},
		{Op: "stop", Service: "a"},
		{Op: "stop-group"},
	}, f.sup.Calls())
	assert.Equal(t, 3, run.Count(services.StateStopped))
	assert.Empty(t, run.GroupError)
}

func TestStopAll_ContinuesPastFailures(t *testing.T) {
	f := newFixture(t, testRegistry(t), &fixedPolicy{decision: Abort})
	f.sup.SetLive("a", true)
	f.sup.SetLive("b", true)
	f.sup.SetLive("c", true)
	f.sup.FailStop("c", errors.New("timeout"))
	f.sup.FailGroup(errors.New("target busy"))

	run := f.orch.StopAll(context.Background())

	assert.Equal(t, []string{"c", "b", "a"}, f.sup.CallsFor("stop"))
	assert.Equal(t, services.StateFailed, run.State("c").State)
	assert.Equal(t, services.StateStopped, run.State("b").State)
	assert.Equal(t, services.StateStopped, run.State("a").State)
	assert.Equal(t, 1, run.FailedCount())
	assert.Equal(t, "target busy", run.GroupError)
}

func TestStopAll_NotLiveIsSkipped(t *testing.T) {
	f := newFixture(t, testRegistry(t), nil)
	f.sup.SetLive("b", true)

	run := f.orch.StopAll(context.Background())

	assert.Equal(t, []string{"b"}, f.sup.CallsFor("stop"))
	a := run.State("a")
	assert.Equal(t, services.StateStopped, a.State)
	assert.True(t, a.Skipped)
	assert.Equal(t, "not running", a.Detail)
}

func TestRestartAll(t *testing.T) {
	f := newFixture(t, testRegistry(t), nil)
	f.sup.SetLive("a", true)
	f.sup.SetLive("c", true)
	f.runner.Always(checkA, true).Always(checkB, true).Always(checkC, true)

	run := f.orch.RestartAll(context.Background())

	assert.Equal(t, services.OpRestart, run.Operation)
	require.NotNil(t, run.Previous)
	assert.Equal(t, services.OpStop, run.Previous.Operation)
	assert.Equal(t, 2, run.Previous.Count(services.StateStopped)-countSkipped(run.Previous))

	assert.Equal(t, []mock.Call{
		{Op: "stop", Service: "c"},
		{Op: "stop", Service: "a"},
		{Op: "stop-group"},
		{Op: "start", Service: "a"},
		{Op: "start", Service: "b"},
		{Op: "start", Service: "c"},
	}, f.sup.Calls())
	assert.Equal(t, 3, run.Count(services.StateHealthy))
	assert.Equal(t, []time.Duration{DefaultSettleDelay}, f.clock.Sleeps())
}

func TestRestartAll_MatchesStopThenStart(t *testing.T) {
	setup := func(f *fixture) {
		f.sup.SetLive("a", true)
		f.sup.SetLive("c", true)
		f.runner.Always(checkA, true).Always(checkB, true).Always(checkC, true)
	}
	finalStates := func(run *services.Run) map[string]services.State {
		out := make(map[string]services.State, len(run.Services))
		for _, s := range run.Services {
			out[s.Name] = s.State
		}
		return out
	}
	liveness := func(f *fixture) map[string]bool {
		out := make(map[string]bool)
		for _, name := range []string{"a", "b", "c"} {
			live, err := f.sup.IsLive(context.Background(), name)
			require.NoError(t, err)
			out[name] = live
		}
		return out
	}

	restarted := newFixture(t, testRegistry(t), nil)
	setup(restarted)
	restartRun := restarted.orch.RestartAll(context.Background())

	sequential := newFixture(t, testRegistry(t), nil)
	setup(sequential)
	stopRun := sequential.orch.StopAll(context.Background())
	startRun := sequential.orch.StartAll(context.Background())

	assert.Equal(t, finalStates(stopRun), finalStates(restartRun.Previous))
	assert.Equal(t, finalStates(startRun), finalStates(restartRun))
	assert.Equal(t, startRun.FailedCount(), restartRun.FailedCount())
	assert.Equal(t, liveness(sequential), liveness(restarted))
	assert.Equal(t, sequential.sup.Calls(), restarted.sup.Calls())
}

func TestStopAll_LivenessQueryFailureStillStops(t *testing.T) {
	f := newFixture(t, testRegistry(t), nil)
	f.sup.SetLive("a", true)
	f.sup.SetLive("b", true)
	f.sup.FailLiveness("b", errors.New("bus timeout"))

	run := f.orch.StopAll(context.Background())

	assert.Equal(t, []string{"b", "a"}, f.sup.CallsFor("stop"))
	b := run.State("b")
	assert.Equal(t, services.StateStopped, b.State)
	assert.False(t, b.Skipped, "an unknown liveness is never reported as not running")
	assert.Equal(t, "stopped", b.Detail)
}

func TestStartAll_LivenessQueryFailureStillStarts(t *testing.T) {
	f := newFixture(t, testRegistry(t), nil)
	f.sup.FailLiveness("a", errors.New("bus timeout"))
	f.runner.Always(checkA, true).Always(checkB, true).Always(checkC, true)

	run := f.orch.StartAll(context.Background())

	assert.Equal(t, []string{"a", "b", "c"}, f.sup.CallsFor("start"))
	assert.False(t, run.State("a").Skipped)
	assert.Equal(t, services.StateHealthy, run.State("a").State)
}

func TestStopAll_InterruptedLeavesRestPending(t *testing.T) {
	f := newFixture(t, testRegistry(t), nil)
	f.sup.SetLive("a", true)
	f.sup.SetLive("b", true)
	f.sup.SetLive("c", true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sup.OnCall(func(c mock.Call) {
		if c.Op == "stop" && c.Service == "c" {
			cancel()
		}
	})

	run := f.orch.StopAll(ctx)

	assert.True(t, run.Interrupted)
	assert.Equal(t, []mock.Call{{Op: "stop", Service: "c"}}, f.sup.Calls(), "no further stops and no group stop")
	assert.Equal(t, services.StateStopped, run.State("c").State)
	assert.Equal(t, services.StatePending, run.State("b").State)
	assert.Equal(t, services.StatePending, run.State("a").State)
	assert.Equal(t, 1, run.Count(services.StateStopped), "live services are never reported stopped")

	live, err := f.sup.IsLive(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, live)
}

func TestStopAll_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t, testRegistry(t), nil)
	f.sup.SetLive("a", true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := f.orch.StopAll(ctx)

	assert.True(t, run.Interrupted)
	assert.Empty(t, f.sup.Calls())
	assert.Equal(t, 3, run.Count(services.StatePending))
}

func TestStartAll_InterruptedWhileWaitingForHealth(t *testing.T) {
	policy := &fixedPolicy{decision: Continue}
	f := newFixture(t, testRegistry(t), policy)
	f.runner.Always(checkA, false).Always(checkB, true).Always(checkC, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sup.OnCall(func(c mock.Call) {
		if c.Op == "start" && c.Service == "a" {
			cancel()
		}
	})

	run := f.orch.StartAll(ctx)

	assert.True(t, run.Interrupted)
	assert.False(t, run.Aborted)
	a := run.State("a")
	assert.Equal(t, services.StateFailed, a.State)
	assert.Equal(t, "interrupted", a.Detail)
	assert.Contains(t, a.LastError, "interrupted while waiting for a")
	assert.Zero(t, f.runner.Calls(checkA))
	assert.Equal(t, services.StatePending, run.State("b").State)
	assert.Equal(t, services.StatePending, run.State("c").State)
	assert.Equal(t, []string{"a"}, f.sup.CallsFor("start"))
	assert.Empty(t, policy.calls, "an interrupted run does not escalate")
}

func TestStopAll_InterruptedDuringLastServiceSkipsGroup(t *testing.T) {
	f := newFixture(t, testRegistry(t), nil)
	f.sup.SetLive("a", true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sup.OnCall(func(c mock.Call) {
		if c.Service == "a" {
			cancel()
		}
	})

	run := f.orch.StopAll(ctx)

	assert.True(t, run.Interrupted)
	assert.Equal(t, services.StateStopped, run.State("a").State)
	assert.Empty(t, f.sup.CallsFor("stop-group"))
	assert.Empty(t, run.GroupError)
}

func TestRestartAll_InterruptedDuringStopSkipsStart(t *testing.T) {
	f := newFixture(t, testRegistry(t), nil)
	f.sup.SetLive("b", true)
	f.sup.SetLive("c", true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sup.OnCall(func(c mock.Call) {
		if c.Op == "stop" && c.Service == "c" {
			cancel()
		}
	})

	run := f.orch.RestartAll(ctx)

	require.NotNil(t, run.Previous)
	assert.True(t, run.Previous.Interrupted)
	assert.True(t, run.Interrupted)
	assert.Equal(t, 3, run.Count(services.StatePending))
	assert.Empty(t, f.sup.CallsFor("start"))
	assert.Empty(t, f.clock.Sleeps(), "no settle delay once interrupted")
}

func countSkipped(run *services.Run) int {
	n := 0
	for _, s := range run.Services {
		if s.Skipped {
			n++
		}
	}
	return n
}

func TestNew_Defaults(t *testing.T) {
	o := New(Config{Registry: testRegistry(t), Supervisor: mock.NewSupervisor()})

	assert.IsType(t, health.RealClock{}, o.clock)
	assert.IsType(t, Unattended{}, o.escalation)
	assert.Equal(t, DefaultSettleDelay, o.settleDelay)
	assert.NotNil(t, o.runner)
	require.NotNil(t, o.poller)
	assert.Equal(t, health.DefaultInterval, o.poller.Interval)
}
