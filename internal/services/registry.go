package services

import (
	"errors"
	"sort"
	"time"

	"cloudphone/internal/health"
)

// ServiceSpec is the static definition of one orchestrated service. It is
// immutable for the lifetime of a Registry.
type ServiceSpec struct {
	Name        string               `json:"name"`
	Unit        string               `json:"unit"`
	Description string               `json:"description,omitempty"`
	Priority    int                  `json:"priority"`
	Timeout     time.Duration        `json:"timeout"`
	Health      health.PredicateSpec `json:"health"`
}

// HealthTarget returns what the health poller waits on for this service.
func (s ServiceSpec) HealthTarget() health.Target {
	return health.Target{Name: s.Name, Check: s.Health, Timeout: s.Timeout}
}

// UnitName returns the supervisor unit backing the service.
func (s ServiceSpec) UnitName() string {
	if s.Unit != "" {
		return s.Unit
	}
	return s.Name + ".service"
}

// Registry holds the services of one orchestrator invocation ordered by
// priority. It is read-only after construction.
type Registry struct {
	ordered []ServiceSpec
	byName  map[string]int
}

// NewRegistry validates specs and orders them by ascending priority, keeping
// declaration order for equal priorities. Every problem found is reported;
// the returned error wraps one *ConfigError per problem.
func NewRegistry(specs ...ServiceSpec) (*Registry, error) {
	var errs []error
	seen := make(map[string]bool, len(specs))

	if len(specs) == 0 {
		errs = append(errs, &ConfigError{Message: "no services defined"})
	}

	for _, s := range specs {
		if s.Name == "" {
			errs = append(errs, &ConfigError{Field: "name", Message: "service name is required"})
			continue
		}
		if seen[s.Name] {
			errs = append(errs, &ConfigError{Service: s.Name, Field: "name", Message: "duplicate service name"})
		}
		seen[s.Name] = true

		if s.Priority <= 0 {
			errs = append(errs, &ConfigError{Service: s.Name, Field: "priority", Message: "must be positive"})
		}
		if s.Timeout <= 0 {
			errs = append(errs, &ConfigError{Service: s.Name, Field: "timeout", Message: "must be positive"})
		}
		if err := s.Health.Validate(); err != nil {
			errs = append(errs, &ConfigError{Service: s.Name, Field: "health", Message: err.Error()})
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	ordered := make([]ServiceSpec, len(specs))
	copy(ordered, specs)
	for i := range ordered {
		ordered[i].Unit = ordered[i].UnitName()
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	byName := make(map[string]int, len(ordered))
	for i, s := range ordered {
		byName[s.Name] = i
	}

	return &Registry{ordered: ordered, byName: byName}, nil
}

// StartOrder returns the services by ascending priority.
func (r *Registry) StartOrder() []ServiceSpec {
	out := make([]ServiceSpec, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// StopOrder returns the exact reverse of StartOrder.
func (r *Registry) StopOrder() []ServiceSpec {
	out := make([]ServiceSpec, len(r.ordered))
	for i, s := range r.ordered {
		out[len(r.ordered)-1-i] = s
	}
	return out
}

// Get returns a service by name
func (r *Registry) Get(name string) (ServiceSpec, bool) {
	i, ok := r.byName[name]
	if !ok {
		return ServiceSpec{}, false
	}
	return r.ordered[i], true
}

// Names returns the service names in start order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ordered))
	for i, s := range r.ordered {
		names[i] = s.Name
	}
	return names
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	return len(r.ordered)
}
