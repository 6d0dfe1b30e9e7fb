package orchestrator

import (
	"context"
	"time"

	"cloudphone/internal/containerizer"
	"cloudphone/internal/dependency"
	"cloudphone/internal/sysinfo"
	"cloudphone/pkg/logging"
)

// ServiceStatus is the liveness view of one service.
type ServiceStatus struct {
	Name        string        `json:"name"`
	Unit        string        `json:"unit"`
	Description string        `json:"description,omitempty"`
	Live        bool          `json:"live"`
	PID         int           `json:"pid,omitempty"`
	Uptime      time.Duration `json:"uptime,omitempty"`
	Memory      uint64        `json:"memory,omitempty"`
}

// StatusReport is the result of Status. Snapshot failures are carried as
// text and never fail the report.
type StatusReport struct {
	Services       []ServiceStatus               `json:"services"`
	Memory         *sysinfo.Memory               `json:"memory,omitempty"`
	MemoryError    string                        `json:"memoryError,omitempty"`
	Containers     []containerizer.ContainerInfo `json:"containers,omitempty"`
	ContainerError string                        `json:"containerError,omitempty"`
}

// LiveCount returns the number of live services.
func (r StatusReport) LiveCount() int {
	n := 0
	for _, s := range r.Services {
		if s.Live {
			n++
		}
	}
	return n
}

// Status reports the liveness (not health) of every service, with PID,
// uptime and memory where the supervisor knows them, plus a host memory and
// container snapshot.
func (o *Orchestrator) Status(ctx context.Context) StatusReport {
	var report StatusReport

	for _, spec := range o.registry.StartOrder() {
		st := ServiceStatus{
			Name:        spec.Name,
			Unit:        spec.UnitName(),
			Description: spec.Description,
		}
		live, err := o.sup.IsLive(ctx, spec.Name)
		if err != nil {
			logging.Warn(subsystem, "Could not query %s: %v", spec.Name, err)
		}
		st.Live = live
		if st.Live {
			if pid, ok := o.sup.PID(ctx, spec.Name); ok {
				st.PID = pid
			}
			if up, ok := o.sup.Uptime(ctx, spec.Name); ok {
				st.Uptime = up
			}
			if mem, ok := o.sup.Memory(ctx, spec.Name); ok {
				st.Memory = mem
			}
		}
		report.Services = append(report.Services, st)
	}

	if o.memory != nil {
		mem, err := o.memory(ctx)
		if err != nil {
			report.MemoryError = err.Error()
			logging.Warn(subsystem, "Memory snapshot unavailable: %v", err)
		} else {
			report.Memory = &mem
		}
	}

	if o.containers != nil {
		containers, err := o.containers.ListContainers(ctx, o.containerFilter)
		if err != nil {
			report.ContainerError = err.Error()
			logging.Warn(subsystem, "Container snapshot unavailable: %v", err)
		} else {
			report.Containers = containers
		}
	}

	return report
}

// CheckOutcome is the result of a single health check.
type CheckOutcome string

const (
	OutcomePass    CheckOutcome = "PASS"
	OutcomeFail    CheckOutcome = "FAIL"
	OutcomeSkipped CheckOutcome = "SKIPPED"
)

// HealthResult is the health view of one service.
type HealthResult struct {
	Name    string       `json:"name"`
	Check   string       `json:"check"`
	Outcome CheckOutcome `json:"outcome"`
	Error   string       `json:"error,omitempty"`
}

// HealthReport is the result of Health.
type HealthReport struct {
	Results []HealthResult `json:"results"`
}

// Failed returns the number of FAIL outcomes.
func (r HealthReport) Failed() int {
	return r.count(OutcomeFail)
}

// Passed returns the number of PASS outcomes.
func (r HealthReport) Passed() int {
	return r.count(OutcomePass)
}

// Skipped returns the number of SKIPPED outcomes.
func (r HealthReport) Skipped() int {
	return r.count(OutcomeSkipped)
}

func (r HealthReport) count(o CheckOutcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Health runs every live service's predicate once. Services that are not
// live are SKIPPED: health is undefined for a service that is not running.
func (o *Orchestrator) Health(ctx context.Context) HealthReport {
	var report HealthReport

	for _, spec := range o.registry.StartOrder() {
		res := HealthResult{Name: spec.Name, Check: spec.Health.String()}

		live, err := o.sup.IsLive(ctx, spec.Name)
		if err != nil {
			res.Error = err.Error()
			logging.Warn(subsystem, "Could not query %s, skipping its health check: %v", spec.Name, err)
		}
		if !live {
			res.Outcome = OutcomeSkipped
			report.Results = append(report.Results, res)
			continue
		}

		passed, err := o.runner.Run(ctx, spec.Health)
		switch {
		case err != nil:
			res.Outcome = OutcomeFail
			res.Error = err.Error()
			logging.Warn(subsystem, "Health check for %s could not run: %v", spec.Name, err)
		case passed:
			res.Outcome = OutcomePass
		default:
			res.Outcome = OutcomeFail
			res.Error = "check did not pass"
		}
		report.Results = append(report.Results, res)
	}

	return report
}

// ServiceDeps is the dependency view of one service.
type ServiceDeps struct {
	Name       string   `json:"name"`
	Unit       string   `json:"unit"`
	Priority   int      `json:"priority"`
	Requires   []string `json:"requires,omitempty"`
	Wants      []string `json:"wants,omitempty"`
	After      []string `json:"after,omitempty"`
	RequiredBy []string `json:"requiredBy,omitempty"`
	WantedBy   []string `json:"wantedBy,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// DepsReport is the result of Deps.
type DepsReport struct {
	Services []ServiceDeps `json:"services"`
}

// Deps reports the supervisor's dependency metadata for every service in
// start order, along with the reverse relationships. Nothing here affects
// start or stop order.
func (o *Orchestrator) Deps(ctx context.Context) DepsReport {
	order := o.registry.StartOrder()
	graph := dependency.New()
	report := DepsReport{Services: make([]ServiceDeps, len(order))}

	for i, spec := range order {
		entry := ServiceDeps{Name: spec.Name, Unit: spec.UnitName(), Priority: spec.Priority}

		deps, err := o.sup.Dependencies(ctx, spec.Name)
		if err != nil {
			entry.Error = err.Error()
			logging.Warn(subsystem, "Dependency metadata for %s unavailable: %v", spec.Name, err)
		} else {
			entry.Requires = deps.Requires
			entry.Wants = deps.Wants
			entry.After = deps.After
		}
		report.Services[i] = entry

		graph.AddNode(dependency.Node{
			ID:          dependency.NodeID(spec.Name),
			Description: spec.Description,
			Requires:    dependency.IDs(entry.Requires),
			Wants:       dependency.IDs(entry.Wants),
			After:       dependency.IDs(entry.After),
		})
	}

	for i := range report.Services {
		id := dependency.NodeID(report.Services[i].Name)
		report.Services[i].RequiredBy = dependency.Strings(graph.Dependents(id))
		report.Services[i].WantedBy = dependency.Strings(graph.Wanters(id))
	}

	return report
}
