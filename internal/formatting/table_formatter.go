package formatting

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"cloudphone/internal/orchestrator"
	"cloudphone/internal/services"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{options: options}
}

// FormatRun renders one row per service followed by a summary line. A
// restart renders its stop phase first.
func (f *TableFormatter) FormatRun(run *services.Run) error {
	if run.Previous != nil {
		if err := f.FormatRun(run.Previous); err != nil {
			return err
		}
		fmt.Fprintln(f.options.Out)
	}

	t := f.createTable()
	t.SetTitle("%s (run %s)", run.Operation, run.ID)
	t.AppendHeader(f.header("SERVICE", "STATE", "ELAPSED", "DETAIL"))
	t.SetColumnConfigs([]table.ColumnConfig{wrapColumn(4)})

	for _, s := range run.Services {
		detail := oneLine(s.Detail)
		if s.LastError != "" {
			detail = f.paint(text.FgRed, oneLine(s.LastError))
		}
		elapsed := "-"
		if s.Elapsed > 0 {
			elapsed = formatDuration(s.Elapsed)
		}
		t.AppendRow(table.Row{s.Name, f.state(s.State), elapsed, detail})
	}
	t.Render()

	if run.GroupError != "" {
		fmt.Fprintf(f.options.Out, "%s %s\n", f.paint(text.FgYellow, "Group stop failed:"), run.GroupError)
	}
	fmt.Fprintln(f.options.Out, f.runSummary(run))
	return nil
}

func (f *TableFormatter) runSummary(run *services.Run) string {
	failed := run.FailedCount()
	var summary string
	switch run.Operation {
	case services.OpStop:
		summary = fmt.Sprintf("%d stopped, %d failed to stop", run.Count(services.StateStopped), failed)
		if pending := run.Count(services.StatePending); pending > 0 {
			summary += fmt.Sprintf(", %d not reached", pending)
		}
	default:
		summary = fmt.Sprintf("%d healthy, %d failed", run.Count(services.StateHealthy), failed)
		if pending := run.Count(services.StatePending); pending > 0 {
			summary += fmt.Sprintf(", %d not started", pending)
		}
	}
	summary += fmt.Sprintf(" in %s", formatDuration(run.Duration))

	switch {
	case run.Interrupted:
		return f.paint(text.FgRed, "Interrupted: ") + summary
	case run.Aborted:
		return f.paint(text.FgRed, "Aborted: ") + summary
	case failed > 0:
		return f.paint(text.FgYellow, "Done: ") + summary
	default:
		return f.paint(text.FgGreen, "Done: ") + summary
	}
}

// FormatStatus renders service liveness, host memory and containers.
func (f *TableFormatter) FormatStatus(report orchestrator.StatusReport) error {
	t := f.createTable()
	t.AppendHeader(f.header("SERVICE", "UNIT", "LIVE", "PID", "UPTIME", "MEMORY"))
	for _, s := range report.Services {
		live := f.paint(text.FgRed, "no")
		pid, uptime := "-", "-"
		if s.Live {
			live = f.paint(text.FgGreen, "yes")
		}
		if s.PID > 0 {
			pid = strconv.Itoa(s.PID)
		}
		if s.Uptime > 0 {
			uptime = formatDuration(s.Uptime)
		}
		t.AppendRow(table.Row{s.Name, s.Unit, live, pid, uptime, formatBytes(s.Memory)})
	}
	t.Render()
	fmt.Fprintf(f.options.Out, "%d of %d services live\n", report.LiveCount(), len(report.Services))

	switch {
	case report.Memory != nil:
		fmt.Fprintf(f.options.Out, "%s %s used of %s (%.1f%%), %s available\n",
			f.paint(text.FgHiBlue, "Host memory:"),
			formatBytes(report.Memory.Used), formatBytes(report.Memory.Total),
			report.Memory.UsedPercent, formatBytes(report.Memory.Available))
	case report.MemoryError != "":
		fmt.Fprintf(f.options.Out, "%s %s\n", f.paint(text.FgYellow, "Host memory unavailable:"), report.MemoryError)
	}

	if report.ContainerError != "" {
		fmt.Fprintf(f.options.Out, "%s %s\n", f.paint(text.FgYellow, "Containers unavailable:"), report.ContainerError)
		return nil
	}
	if len(report.Containers) == 0 {
		return nil
	}

	fmt.Fprintln(f.options.Out)
	ct := f.createTable()
	ct.AppendHeader(f.header("CONTAINER", "ID", "IMAGE", "STATE", "STATUS"))
	for _, c := range report.Containers {
		state := f.paint(text.FgYellow, c.State)
		if c.Running() {
			state = f.paint(text.FgGreen, c.State)
		}
		ct.AppendRow(table.Row{c.Name, c.ID, c.Image, state, c.Status})
	}
	ct.Render()
	return nil
}

// FormatHealth renders one PASS/FAIL/SKIPPED row per service.
func (f *TableFormatter) FormatHealth(report orchestrator.HealthReport) error {
	t := f.createTable()
	t.AppendHeader(f.header("SERVICE", "CHECK", "RESULT", "ERROR"))
	t.SetColumnConfigs([]table.ColumnConfig{wrapColumn(4)})
	for _, r := range report.Results {
		errText := oneLine(r.Error)
		if errText == "" {
			errText = "-"
		}
		t.AppendRow(table.Row{r.Name, r.Check, f.outcome(r.Outcome), errText})
	}
	t.Render()
	fmt.Fprintf(f.options.Out, "%d passed, %d failed, %d skipped\n", report.Passed(), report.Failed(), report.Skipped())
	return nil
}

// FormatDeps renders the supervisor dependency metadata in start order.
func (f *TableFormatter) FormatDeps(report orchestrator.DepsReport) error {
	t := f.createTable()
	t.AppendHeader(f.header("SERVICE", "PRIORITY", "REQUIRES", "WANTS", "AFTER", "REQUIRED BY", "WANTED BY"))
	for _, d := range report.Services {
		if d.Error != "" {
			t.AppendRow(table.Row{d.Name, d.Priority, f.paint(text.FgYellow, d.Error), "", "", "", ""})
			continue
		}
		t.AppendRow(table.Row{
			d.Name,
			d.Priority,
			joinOrDash(d.Requires),
			joinOrDash(d.Wants),
			joinOrDash(d.After),
			joinOrDash(d.RequiredBy),
			joinOrDash(d.WantedBy),
		})
	}
	t.Render()
	fmt.Fprintln(f.options.Out, "Start order follows priority; dependency metadata is shown as reported by the supervisor.")
	return nil
}

func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.Out)
	if f.options.Color {
		t.SetStyle(table.StyleRounded)
	} else {
		t.SetStyle(table.StyleDefault)
	}
	return t
}

// wrapColumn soft-wraps long supervisor and check errors instead of letting
// them stretch the table.
func wrapColumn(number int) table.ColumnConfig {
	return table.ColumnConfig{
		Number:           number,
		WidthMax:         detailWidth,
		WidthMaxEnforcer: text.WrapSoft,
	}
}

func (f *TableFormatter) header(columns ...string) table.Row {
	row := make(table.Row, len(columns))
	for i, c := range columns {
		row[i] = f.paint(text.FgHiCyan, c)
	}
	return row
}

func (f *TableFormatter) state(s services.State) string {
	switch s {
	case services.StateHealthy, services.StateStopped:
		return f.paint(text.FgGreen, string(s))
	case services.StateFailed:
		return f.paint(text.FgRed, string(s))
	default:
		return f.paint(text.FgYellow, string(s))
	}
}

func (f *TableFormatter) outcome(o orchestrator.CheckOutcome) string {
	switch o {
	case orchestrator.OutcomePass:
		return f.paint(text.FgGreen, string(o))
	case orchestrator.OutcomeFail:
		return f.paint(text.FgRed, string(o))
	default:
		return f.paint(text.FgHiBlack, string(o))
	}
}

// paint colors s unless colors are disabled.
func (f *TableFormatter) paint(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}
