package supervisor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudphone/internal/health"
	"cloudphone/internal/services"
)

type fakeConn struct {
	unitProps    map[string]map[string]interface{}
	serviceProps map[string]map[string]interface{}
	jobResult    map[string]string
	jobErr       map[string]error
	started      []string
	stopped      []string
	closed       bool
}

func (f *fakeConn) StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.started = append(f.started, name)
	return f.job(name, ch)
}

func (f *fakeConn) StopUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.stopped = append(f.stopped, name)
	return f.job(name, ch)
}

func (f *fakeConn) job(name string, ch chan<- string) (int, error) {
	if err := f.jobErr[name]; err != nil {
		return 0, err
	}
	result, ok := f.jobResult[name]
	if !ok {
		result = "done"
	}
	ch <- result
	return 1, nil
}

func (f *fakeConn) GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	props, ok := f.unitProps[unit]
	if !ok {
		return nil, errors.New("no such unit")
	}
	return props, nil
}

func (f *fakeConn) GetUnitTypePropertiesContext(ctx context.Context, unit string, unitType string) (map[string]interface{}, error) {
	props, ok := f.serviceProps[unit]
	if !ok {
		return nil, errors.New("no such unit")
	}
	return props, nil
}

func (f *fakeConn) Close() { f.closed = true }

func testRegistry(t *testing.T) *services.Registry {
	t.Helper()
	check := health.PredicateSpec{Type: health.TypeFile, Path: "/tmp/ready"}
	reg, err := services.NewRegistry(
		services.ServiceSpec{Name: "redroid", Unit: "cloudphone-redroid.service", Priority: 10, Timeout: time.Minute, Health: check},
		services.ServiceSpec{Name: "control-api", Priority: 30, Timeout: time.Minute, Health: check},
	)
	require.NoError(t, err)
	return reg
}

func TestSystemd_IsLive(t *testing.T) {
	conn := &fakeConn{unitProps: map[string]map[string]interface{}{
		"cloudphone-redroid.service": {"ActiveState": "active"},
		"control-api.service":        {"ActiveState": "inactive"},
	}}
	s := newSystemd(conn, testRegistry(t), SystemdOptions{})
	ctx := context.Background()

	live, err := s.IsLive(ctx, "redroid")
	require.NoError(t, err)
	assert.True(t, live)

	live, err = s.IsLive(ctx, "control-api")
	require.NoError(t, err)
	assert.False(t, live)

	_, err = s.IsLive(ctx, "unknown")
	assert.Error(t, err, "query failures are reported, not mapped to not live")
}

func TestSystemd_IsLive_States(t *testing.T) {
	for state, want := range map[string]bool{
		"active":       true,
		"reloading":    true,
		"activating":   false,
		"deactivating": false,
		"failed":       false,
	} {
		conn := &fakeConn{unitProps: map[string]map[string]interface{}{
			"cloudphone-redroid.service": {"ActiveState": state, "SubState": "auto-restart"},
		}}
		s := newSystemd(conn, testRegistry(t), SystemdOptions{})

		live, err := s.IsLive(context.Background(), "redroid")
		require.NoError(t, err, state)
		assert.Equal(t, want, live, state)
	}
}

func TestSystemd_CancelledContext(t *testing.T) {
	conn := &fakeConn{unitProps: map[string]map[string]interface{}{
		"cloudphone-redroid.service": {"ActiveState": "active"},
	}}
	s := newSystemd(conn, testRegistry(t), SystemdOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	live, err := s.IsLive(ctx, "redroid")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, live)

	err = s.Stop(ctx, "redroid")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, conn.stopped)
}

func TestSystemd_StartStop(t *testing.T) {
	conn := &fakeConn{
		jobResult: map[string]string{"control-api.service": "failed"},
	}
	s := newSystemd(conn, testRegistry(t), SystemdOptions{})
	ctx := context.Background()

	require.NoError(t, s.Start(ctx, "redroid"))
	assert.Equal(t, []string{"cloudphone-redroid.service"}, conn.started)

	err := s.Start(ctx, "control-api")
	require.Error(t, err)
	var primErr *PrimitiveError
	require.True(t, errors.As(err, &primErr))
	assert.Equal(t, "start", primErr.Op)
	assert.Equal(t, "control-api", primErr.Service)
	assert.Contains(t, err.Error(), `"failed"`)

	conn.jobErr = map[string]error{"cloudphone-redroid.service": errors.New("access denied")}
	err = s.Stop(ctx, "redroid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestSystemd_StopGroup(t *testing.T) {
	conn := &fakeConn{}
	s := newSystemd(conn, testRegistry(t), SystemdOptions{Target: "phone.target"})

	require.NoError(t, s.StopGroup(context.Background()))
	assert.Equal(t, []string{"phone.target"}, conn.stopped)

	s = newSystemd(conn, testRegistry(t), SystemdOptions{})
	require.NoError(t, s.StopGroup(context.Background()))
	assert.Equal(t, DefaultTarget, conn.stopped[1])
}

func TestSystemd_RuntimeDetails(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	enter := now.Add(-90 * time.Minute)

	conn := &fakeConn{
		unitProps: map[string]map[string]interface{}{
			"cloudphone-redroid.service": {"ActiveState": "active", "ActiveEnterTimestamp": uint64(enter.UnixMicro())},
			"control-api.service":        {"ActiveState": "inactive"},
		},
		serviceProps: map[string]map[string]interface{}{
			"cloudphone-redroid.service": {"MainPID": uint32(4242), "MemoryCurrent": uint64(512 << 20)},
			"control-api.service":        {"MainPID": uint32(0), "MemoryCurrent": uint64(math.MaxUint64)},
		},
	}
	s := newSystemd(conn, testRegistry(t), SystemdOptions{})
	s.now = func() time.Time { return now }
	ctx := context.Background()

	pid, ok := s.PID(ctx, "redroid")
	assert.True(t, ok)
	assert.Equal(t, 4242, pid)

	_, ok = s.PID(ctx, "control-api")
	assert.False(t, ok)

	up, ok := s.Uptime(ctx, "redroid")
	assert.True(t, ok)
	assert.Equal(t, 90*time.Minute, up)

	_, ok = s.Uptime(ctx, "control-api")
	assert.False(t, ok)

	mem, ok := s.Memory(ctx, "redroid")
	assert.True(t, ok)
	assert.Equal(t, uint64(512<<20), mem)

	_, ok = s.Memory(ctx, "control-api")
	assert.False(t, ok, "accounting disabled")
}

func TestSystemd_Dependencies(t *testing.T) {
	conn := &fakeConn{unitProps: map[string]map[string]interface{}{
		"control-api.service": {
			"Requires": []string{"cloudphone-redroid.service", "system.slice", "sysinit.target"},
			"Wants":    []string{"network-online.target", "docker.service"},
			"After":    []string{"cloudphone-redroid.service", "basic.target", "-.mount"},
		},
	}}
	s := newSystemd(conn, testRegistry(t), SystemdOptions{})

	deps, err := s.Dependencies(context.Background(), "control-api")
	require.NoError(t, err)
	assert.Equal(t, []string{"redroid"}, deps.Requires)
	assert.Equal(t, []string{"network-online.target", "docker.service"}, deps.Wants, "units outside the registry are kept by unit name")
	assert.Equal(t, []string{"redroid"}, deps.After)

	_, err = s.Dependencies(context.Background(), "redroid")
	assert.Error(t, err)
}

func TestSystemd_Close(t *testing.T) {
	conn := &fakeConn{}
	s := newSystemd(conn, testRegistry(t), SystemdOptions{})
	s.Close()
	assert.True(t, conn.closed)
}
