package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"

	"cloudphone/internal/health"
	"cloudphone/internal/services"
)

// progress renders a spinner per service while the orchestrator works on
// it and leaves one result line behind when the service is done.
type progress struct {
	s *spinner.Spinner
}

func newProgress(out io.Writer) *progress {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	return &progress{s: s}
}

// Begin implements orchestrator.Observer.
func (p *progress) Begin(op services.Operation, spec services.ServiceSpec) {
	verb := "Starting"
	if op == services.OpStop {
		verb = "Stopping"
	}
	p.s.Suffix = fmt.Sprintf(" %s %s...", verb, spec.Name)
	p.s.FinalMSG = ""
	p.s.Start()
}

// End implements orchestrator.Observer.
func (p *progress) End(_ services.Operation, state services.RunState) {
	var mark string
	switch state.State {
	case services.StateHealthy, services.StateStopped:
		mark = text.FgGreen.Sprint("✓")
	case services.StateFailed:
		mark = text.FgRed.Sprint("✗")
	default:
		mark = text.FgYellow.Sprint("-")
	}
	line := fmt.Sprintf("%s %s %s", mark, state.Name, state.State)
	switch {
	case state.LastError != "":
		line += ": " + state.LastError
	case state.Detail != "":
		line += " (" + state.Detail + ")"
	}
	p.s.FinalMSG = line + "\n"
	p.s.Stop()
}

// attempt is installed as the poller's OnAttempt callback.
func (p *progress) attempt(t health.Target, attempt int, passed bool, elapsed time.Duration) {
	if passed {
		return
	}
	p.s.Suffix = fmt.Sprintf(" Waiting for %s to become healthy (check %d, %s of %s)...",
		t.Name, attempt, elapsed.Round(time.Second), t.Timeout)
}
