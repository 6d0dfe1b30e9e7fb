package formatting

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"cloudphone/internal/containerizer"
	"cloudphone/internal/orchestrator"
	"cloudphone/internal/services"
	"cloudphone/internal/sysinfo"
)

// runDocument is the machine-readable form of a run. Durations are rendered
// as Go duration strings.
type runDocument struct {
	ID          string               `json:"id"`
	Operation   string               `json:"operation"`
	StartedAt   time.Time            `json:"startedAt"`
	Duration    string               `json:"duration"`
	Failed      int                  `json:"failed"`
	Aborted     bool                 `json:"aborted,omitempty"`
	Interrupted bool                 `json:"interrupted,omitempty"`
	GroupError  string               `json:"groupError,omitempty"`
	Services    []serviceRunDocument `json:"services"`
	Previous    *runDocument         `json:"previous,omitempty"`
}

type serviceRunDocument struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Elapsed   string `json:"elapsed"`
	Skipped   bool   `json:"skipped,omitempty"`
	Detail    string `json:"detail,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

func newRunDocument(run *services.Run) *runDocument {
	if run == nil {
		return nil
	}
	doc := &runDocument{
		ID:          run.ID,
		Operation:   string(run.Operation),
		StartedAt:   run.StartedAt,
		Duration:    formatDuration(run.Duration),
		Failed:      run.FailedCount(),
		Aborted:     run.Aborted,
		Interrupted: run.Interrupted,
		GroupError:  run.GroupError,
		Services:    make([]serviceRunDocument, len(run.Services)),
		Previous:    newRunDocument(run.Previous),
	}
	for i, s := range run.Services {
		doc.Services[i] = serviceRunDocument{
			Name:      s.Name,
			State:     string(s.State),
			Elapsed:   formatDuration(s.Elapsed),
			Skipped:   s.Skipped,
			Detail:    s.Detail,
			LastError: s.LastError,
		}
	}
	return doc
}

type statusDocument struct {
	Live           int                           `json:"live"`
	Services       []serviceStatusDocument       `json:"services"`
	Memory         *sysinfo.Memory               `json:"memory,omitempty"`
	MemoryError    string                        `json:"memoryError,omitempty"`
	Containers     []containerizer.ContainerInfo `json:"containers,omitempty"`
	ContainerError string                        `json:"containerError,omitempty"`
}

type serviceStatusDocument struct {
	Name        string `json:"name"`
	Unit        string `json:"unit"`
	Description string `json:"description,omitempty"`
	Live        bool   `json:"live"`
	PID         int    `json:"pid,omitempty"`
	Uptime      string `json:"uptime,omitempty"`
	MemoryBytes uint64 `json:"memoryBytes,omitempty"`
}

func newStatusDocument(report orchestrator.StatusReport) statusDocument {
	doc := statusDocument{
		Live:           report.LiveCount(),
		Services:       make([]serviceStatusDocument, len(report.Services)),
		Memory:         report.Memory,
		MemoryError:    report.MemoryError,
		Containers:     report.Containers,
		ContainerError: report.ContainerError,
	}
	for i, s := range report.Services {
		doc.Services[i] = serviceStatusDocument{
			Name:        s.Name,
			Unit:        s.Unit,
			Description: s.Description,
			Live:        s.Live,
			PID:         s.PID,
			MemoryBytes: s.Memory,
		}
		if s.Uptime > 0 {
			doc.Services[i].Uptime = formatDuration(s.Uptime)
		}
	}
	return doc
}

// formatDuration rounds d for display: milliseconds below a minute, seconds
// above.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

// formatBytes renders a byte count with binary units, or "-" for zero.
func formatBytes(b uint64) string {
	if b == 0 {
		return "-"
	}
	return humanize.IBytes(b)
}

// detailWidth is the widest an error or detail cell is rendered.
const detailWidth = 60

// oneLine collapses all whitespace runs, newlines included, into single
// spaces so multi-line errors stay inside their table cell.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// joinOrDash joins values with ", " or returns "-" when there are none.
func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
