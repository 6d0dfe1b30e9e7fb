package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudphone/internal/health"
)

func spec(name string, priority int) ServiceSpec {
	return ServiceSpec{
		Name:     name,
		Priority: priority,
		Timeout:  10 * time.Second,
		Health:   health.PredicateSpec{Type: health.TypeFile, Path: "/run/" + name},
	}
}

func TestNewRegistry_Order(t *testing.T) {
	reg, err := NewRegistry(
		spec("log-aggregator", 40),
		spec("redroid", 10),
		spec("control-api", 30),
		spec("stream-bridge", 20),
	)
	require.NoError(t, err)

	assert.Equal(t, 4, reg.Len())
	assert.Equal(t, []string{"redroid", "stream-bridge", "control-api", "log-aggregator"}, reg.Names())

	start := reg.StartOrder()
	stop := reg.StopOrder()
	require.Len(t, stop, len(start))
	for i := range start {
		assert.Equal(t, start[i].Name, stop[len(stop)-1-i].Name)
	}
}

func TestNewRegistry_TiesKeepDeclarationOrder(t *testing.T) {
	reg, err := NewRegistry(spec("b", 10), spec("a", 10), spec("c", 5))
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, reg.Names())

	var stop []string
	for _, s := range reg.StopOrder() {
		stop = append(stop, s.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, stop)
}

func TestNewRegistry_DefaultsUnit(t *testing.T) {
	withUnit := spec("redroid", 10)
	withUnit.Unit = "redroid-container.service"
	specs := []ServiceSpec{withUnit, spec("control-api", 20)}

	reg, err := NewRegistry(specs...)
	require.NoError(t, err)

	got, ok := reg.Get("redroid")
	require.True(t, ok)
	assert.Equal(t, "redroid-container.service", got.Unit)

	got, ok = reg.Get("control-api")
	require.True(t, ok)
	assert.Equal(t, "control-api.service", got.Unit)
	assert.Empty(t, specs[1].Unit, "caller's specs are not modified")

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestNewRegistry_ReturnsCopies(t *testing.T) {
	reg, err := NewRegistry(spec("a", 1), spec("b", 2))
	require.NoError(t, err)

	order := reg.StartOrder()
	order[0].Name = "mutated"
	assert.Equal(t, []string{"a", "b"}, reg.Names())
}

func TestNewRegistry_Errors(t *testing.T) {
	noTimeout := spec("b", 2)
	noTimeout.Timeout = 0
	badHealth := spec("c", 3)
	badHealth.Health = health.PredicateSpec{Type: health.TypePort}

	tests := []struct {
		name     string
		specs    []ServiceSpec
		problems []string
	}{
		{
			name:     "empty",
			specs:    nil,
			problems: []string{"no services defined"},
		},
		{
			name:     "missing name",
			specs:    []ServiceSpec{spec("", 1)},
			problems: []string{"service name is required"},
		},
		{
			name:     "duplicate",
			specs:    []ServiceSpec{spec("a", 1), spec("a", 2)},
			problems: []string{`invalid service "a": name: duplicate service name`},
		},
		{
			name:     "non-positive priority",
			specs:    []ServiceSpec{spec("a", 0)},
			problems: []string{`invalid service "a": priority: must be positive`},
		},
		{
			name:  "several problems reported together",
			specs: []ServiceSpec{spec("a", -1), noTimeout, badHealth},
			problems: []string{
				`"a": priority`,
				`"b": timeout`,
				`"c": health: port check requires an address`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewRegistry(tt.specs...)
			require.Error(t, err)
			assert.Nil(t, reg)
			assert.True(t, IsConfigError(err))
			for _, p := range tt.problems {
				assert.Contains(t, err.Error(), p)
			}
		})
	}
}

func TestIsConfigError(t *testing.T) {
	assert.False(t, IsConfigError(errors.New("plain")))
	assert.True(t, IsConfigError(errors.Join(errors.New("x"), &ConfigError{Message: "y"})))
}

func TestServiceSpec_HealthTarget(t *testing.T) {
	s := spec("redroid", 10)
	target := s.HealthTarget()
	assert.Equal(t, "redroid", target.Name)
	assert.Equal(t, 10*time.Second, target.Timeout)
	assert.Equal(t, s.Health, target.Check)
}
