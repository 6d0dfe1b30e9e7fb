package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"cloudphone/internal/supervisor"
)

// Call is one primitive invocation recorded by Supervisor.
type Call struct {
	Op      string
	Service string
}

// Supervisor is an in-memory supervisor.Supervisor. Start marks a service
// live and Stop marks it not live unless an error is configured for it.
// Every method fails with the context's error once ctx is done.
type Supervisor struct {
	mu sync.Mutex

	live      map[string]bool
	liveErrs  map[string]error
	startErrs map[string]error
	stopErrs  map[string]error
	groupErr  error
	deps      map[string]supervisor.Dependencies
	depErrs   map[string]error
	pids      map[string]int
	uptimes   map[string]time.Duration
	memory    map[string]uint64

	calls  []Call
	onCall func(Call)
}

var _ supervisor.Supervisor = (*Supervisor)(nil)

// NewSupervisor creates a supervisor where the named services are live.
func NewSupervisor(live ...string) *Supervisor {
	s := &Supervisor{
		live:      make(map[string]bool),
		liveErrs:  make(map[string]error),
		startErrs: make(map[string]error),
		stopErrs:  make(map[string]error),
		deps:      make(map[string]supervisor.Dependencies),
		depErrs:   make(map[string]error),
		pids:      make(map[string]int),
		uptimes:   make(map[string]time.Duration),
		memory:    make(map[string]uint64),
	}
	for _, name := range live {
		s.live[name] = true
	}
	return s
}

// SetLive marks a service live or not.
func (s *Supervisor) SetLive(name string, live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[name] = live
}

// FailLiveness makes IsLive return err for name.
func (s *Supervisor) FailLiveness(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveErrs[name] = err
}

// OnCall registers fn to run after each start, stop and group call is
// recorded. Tests use it to cancel a run part way through.
func (s *Supervisor) OnCall(fn func(Call)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCall = fn
}

// FailStart makes Start fail for name.
func (s *Supervisor) FailStart(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startErrs[name] = err
}

// FailStop makes Stop fail for name. The service stays live.
func (s *Supervisor) FailStop(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopErrs[name] = err
}

// FailGroup makes StopGroup fail.
func (s *Supervisor) FailGroup(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupErr = err
}

// SetDependencies sets the metadata returned by Dependencies.
func (s *Supervisor) SetDependencies(name string, deps supervisor.Dependencies) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps[name] = deps
}

// FailDependencies makes Dependencies fail for name.
func (s *Supervisor) FailDependencies(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depErrs[name] = err
}

// SetProcessInfo sets the PID, uptime and memory reported for name.
func (s *Supervisor) SetProcessInfo(name string, pid int, uptime time.Duration, memory uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pids[name] = pid
	s.uptimes[name] = uptime
	s.memory[name] = memory
}

// Calls returns the recorded start, stop and group calls in order.
func (s *Supervisor) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsFor returns the services passed to op, in call order.
func (s *Supervisor) CallsFor(op string) []string {
	var names []string
	for _, c := range s.Calls() {
		if c.Op == op {
			names = append(names, c.Service)
		}
	}
	return names
}

func (s *Supervisor) IsLive(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.liveErrs[name]; err != nil {
		return false, err
	}
	return s.live[name], nil
}

// record appends c and returns the hook to run once the lock is released.
func (s *Supervisor) record(c Call) func() {
	s.calls = append(s.calls, c)
	if fn := s.onCall; fn != nil {
		return func() { fn(c) }
	}
	return func() {}
}

func (s *Supervisor) Start(ctx context.Context, name string) error {
	s.mu.Lock()
	after := s.record(Call{Op: "start", Service: name})
	err := s.start(ctx, name)
	s.mu.Unlock()
	after()
	return err
}

func (s *Supervisor) start(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return &supervisor.PrimitiveError{Op: "start", Service: name, Err: err}
	}
	if err := s.startErrs[name]; err != nil {
		return &supervisor.PrimitiveError{Op: "start", Service: name, Err: err}
	}
	s.live[name] = true
	return nil
}

func (s *Supervisor) Stop(ctx context.Context, name string) error {
	s.mu.Lock()
	after := s.record(Call{Op: "stop", Service: name})
	err := s.stop(ctx, name)
	s.mu.Unlock()
	after()
	return err
}

func (s *Supervisor) stop(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return &supervisor.PrimitiveError{Op: "stop", Service: name, Err: err}
	}
	if err := s.stopErrs[name]; err != nil {
		return &supervisor.PrimitiveError{Op: "stop", Service: name, Err: err}
	}
	s.live[name] = false
	return nil
}

func (s *Supervisor) StopGroup(ctx context.Context) error {
	s.mu.Lock()
	after := s.record(Call{Op: "stop-group"})
	err := ctx.Err()
	if err == nil {
		err = s.groupErr
	}
	s.mu.Unlock()
	after()
	return err
}

func (s *Supervisor) PID(_ context.Context, name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid, ok := s.pids[name]
	return pid, ok
}

func (s *Supervisor) Uptime(_ context.Context, name string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	up, ok := s.uptimes[name]
	return up, ok
}

func (s *Supervisor) Memory(_ context.Context, name string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memory[name]
	return m, ok
}

func (s *Supervisor) Dependencies(_ context.Context, name string) (supervisor.Dependencies, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.depErrs[name]; err != nil {
		return supervisor.Dependencies{}, err
	}
	return s.deps[name], nil
}

// ErrPrimitive is a generic primitive failure for tests.
var ErrPrimitive = errors.New("primitive failed")
