package supervisor

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	sddbus "github.com/coreos/go-systemd/v22/dbus"

	"cloudphone/internal/services"
	"cloudphone/pkg/logging"
)

const systemdSubsystem = "Supervisor"

// DefaultTarget is the systemd target grouping all cloud-phone units.
const DefaultTarget = "cloudphone.target"

// jobMode makes a queued job replace any conflicting pending job.
const jobMode = "replace"

// dbusConn is the subset of *sddbus.Conn used here, kept as an interface so
// tests can substitute a fake bus.
type dbusConn interface {
	StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]interface{}, error)
	GetUnitTypePropertiesContext(ctx context.Context, unit string, unitType string) (map[string]interface{}, error)
	Close()
}

// SystemdOptions configures the systemd supervisor.
type SystemdOptions struct {
	// UserBus selects the per-user manager instead of the system manager.
	UserBus bool
	// Target is stopped by StopGroup. Defaults to DefaultTarget.
	Target string
}

// Systemd implements Supervisor over the systemd D-Bus API.
type Systemd struct {
	conn   dbusConn
	units  map[string]string
	target string
	now    func() time.Time
}

// NewSystemd connects to the system (or user) manager and maps every
// registry service to its unit.
func NewSystemd(ctx context.Context, reg *services.Registry, opts SystemdOptions) (*Systemd, error) {
	var (
		conn *sddbus.Conn
		err  error
	)
	if opts.UserBus {
		conn, err = sddbus.NewUserConnectionContext(ctx)
	} else {
		conn, err = sddbus.NewSystemConnectionContext(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	return newSystemd(conn, reg, opts), nil
}

func newSystemd(conn dbusConn, reg *services.Registry, opts SystemdOptions) *Systemd {
	units := make(map[string]string, reg.Len())
	for _, name := range reg.Names() {
		if spec, ok := reg.Get(name); ok {
			units[name] = spec.UnitName()
		}
	}
	target := opts.Target
	if target == "" {
		target = DefaultTarget
	}
	return &Systemd{conn: conn, units: units, target: target, now: time.Now}
}

// Close releases the bus connection.
func (s *Systemd) Close() {
	s.conn.Close()
}

func (s *Systemd) unit(name string) string {
	if u, ok := s.units[name]; ok {
		return u
	}
	return name + ".service"
}

// IsLive reports whether the unit is active or reloading. A unit that is
// still activating is not live: it may be crash looping in auto-restart with
// no process behind it.
func (s *Systemd) IsLive(ctx context.Context, name string) (bool, error) {
	unit := s.unit(name)
	props, err := s.conn.GetUnitPropertiesContext(ctx, unit)
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", unit, err)
	}
	state, _ := props["ActiveState"].(string)
	switch state {
	case "active", "reloading":
		return true, nil
	default:
		logging.Debug(systemdSubsystem, "%s is %s", unit, state)
		return false, nil
	}
}

// Start queues a start job for the service's unit and waits for its result.
func (s *Systemd) Start(ctx context.Context, name string) error {
	unit := s.unit(name)
	logging.Debug(systemdSubsystem, "Starting unit %s", unit)
	if err := s.runJob(ctx, unit, s.conn.StartUnitContext); err != nil {
		return &PrimitiveError{Op: "start", Service: name, Err: err}
	}
	return nil
}

// Stop queues a stop job for the service's unit and waits for its result.
func (s *Systemd) Stop(ctx context.Context, name string) error {
	unit := s.unit(name)
	logging.Debug(systemdSubsystem, "Stopping unit %s", unit)
	if err := s.runJob(ctx, unit, s.conn.StopUnitContext); err != nil {
		return &PrimitiveError{Op: "stop", Service: name, Err: err}
	}
	return nil
}

// StopGroup stops the grouping target.
func (s *Systemd) StopGroup(ctx context.Context) error {
	logging.Debug(systemdSubsystem, "Stopping target %s", s.target)
	if err := s.runJob(ctx, s.target, s.conn.StopUnitContext); err != nil {
		return &PrimitiveError{Op: "stop", Service: s.target, Err: err}
	}
	return nil
}

type jobFunc func(ctx context.Context, name string, mode string, ch chan<- string) (int, error)

func (s *Systemd) runJob(ctx context.Context, unit string, job jobFunc) error {
	ch := make(chan string, 1)
	if _, err := job(ctx, unit, jobMode, ch); err != nil {
		return err
	}
	select {
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("job for %s finished with result %q", unit, result)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for job on %s: %w", unit, ctx.Err())
	}
}

// PID returns the unit's main process ID.
func (s *Systemd) PID(ctx context.Context, name string) (int, bool) {
	props, err := s.conn.GetUnitTypePropertiesContext(ctx, s.unit(name), "Service")
	if err != nil {
		return 0, false
	}
	pid, ok := props["MainPID"].(uint32)
	if !ok || pid == 0 {
		return 0, false
	}
	return int(pid), true
}

// Uptime returns the time since the unit last entered the active state.
func (s *Systemd) Uptime(ctx context.Context, name string) (time.Duration, bool) {
	props, err := s.conn.GetUnitPropertiesContext(ctx, s.unit(name))
	if err != nil {
		return 0, false
	}
	if state, _ := props["ActiveState"].(string); state != "active" {
		return 0, false
	}
	usec, ok := props["ActiveEnterTimestamp"].(uint64)
	if !ok || usec == 0 {
		return 0, false
	}
	since := time.UnixMicro(int64(usec))
	return s.now().Sub(since), true
}

// Memory returns the unit's current cgroup memory usage in bytes.
func (s *Systemd) Memory(ctx context.Context, name string) (uint64, bool) {
	props, err := s.conn.GetUnitTypePropertiesContext(ctx, s.unit(name), "Service")
	if err != nil {
		return 0, false
	}
	mem, ok := props["MemoryCurrent"].(uint64)
	// systemd reports UINT64_MAX when accounting is disabled.
	if !ok || mem == math.MaxUint64 {
		return 0, false
	}
	return mem, true
}

// Dependencies returns the unit's Requires, Wants and After lists. Units
// that belong to the registry are translated back to service names; other
// units are kept by unit name, except systemd's implicit slice and mount
// plumbing and the sysinit/basic targets every service depends on.
func (s *Systemd) Dependencies(ctx context.Context, name string) (Dependencies, error) {
	props, err := s.conn.GetUnitPropertiesContext(ctx, s.unit(name))
	if err != nil {
		return Dependencies{}, fmt.Errorf("failed to read dependencies of %s: %w", s.unit(name), err)
	}
	return Dependencies{
		Requires: s.serviceNames(props["Requires"]),
		Wants:    s.serviceNames(props["Wants"]),
		After:    s.serviceNames(props["After"]),
	}, nil
}

func (s *Systemd) serviceNames(v interface{}) []string {
	units, _ := v.([]string)
	if len(units) == 0 {
		return nil
	}
	byUnit := make(map[string]string, len(s.units))
	for name, unit := range s.units {
		byUnit[unit] = name
	}

	out := make([]string, 0, len(units))
	for _, u := range units {
		if name, ok := byUnit[u]; ok {
			out = append(out, name)
			continue
		}
		// Keep well-known infrastructure units, drop systemd's implicit
		// slice/mount plumbing.
		if strings.HasSuffix(u, ".slice") || strings.HasSuffix(u, ".mount") || u == "sysinit.target" || u == "basic.target" {
			continue
		}
		out = append(out, u)
	}
	return out
}
