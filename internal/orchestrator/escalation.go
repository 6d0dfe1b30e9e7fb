package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"cloudphone/internal/services"
	"cloudphone/pkg/logging"
)

// Decision is the outcome of escalating a failed service.
type Decision int

const (
	Continue Decision = iota
	Abort
)

func (d Decision) String() string {
	if d == Abort {
		return "abort"
	}
	return "continue"
}

// DefaultPromptTimeout bounds how long an attended run waits for an answer.
const DefaultPromptTimeout = 60 * time.Second

// EscalationPolicy decides whether a start run goes on after a service ended
// FAILED. It is consulted once per failed service, including the last one,
// in which case remaining is zero and the decision has no effect.
type EscalationPolicy interface {
	Escalate(ctx context.Context, failed services.RunState, remaining int) Decision
}

// Unattended always continues. The failure still counts towards the run's
// failed total, so the caller's exit code reflects it.
type Unattended struct{}

// Escalate logs a warning and continues.
func (Unattended) Escalate(_ context.Context, failed services.RunState, remaining int) Decision {
	if remaining == 0 {
		logging.Warn(subsystem, "%s failed (%s); running unattended, no services left to start",
			failed.Name, failed.LastError)
		return Continue
	}
	logging.Warn(subsystem, "%s failed (%s); running unattended, continuing with %d remaining services",
		failed.Name, failed.LastError, remaining)
	return Continue
}

// Prompter asks the operator a question and returns the raw answer.
type Prompter interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Attended asks the operator whether to continue. Anything but an explicit
// yes aborts, including an empty answer, end of input, an interrupt or
// running out of time.
type Attended struct {
	Prompter Prompter
	Timeout  time.Duration
}

// Escalate prompts and maps the answer to a decision. There is nothing to
// ask about once no services remain.
func (a Attended) Escalate(ctx context.Context, failed services.RunState, remaining int) Decision {
	if remaining == 0 {
		logging.Warn(subsystem, "%s failed (%s); no services left to start", failed.Name, failed.LastError)
		return Continue
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultPromptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	question := fmt.Sprintf("%s failed: %s\nContinue starting the remaining %d services? [y/N] ",
		failed.Name, failed.LastError, remaining)

	answer, err := a.Prompter.Ask(ctx, question)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			logging.Warn(subsystem, "No answer within %s, aborting", timeout)
		case errors.Is(err, io.EOF), errors.Is(err, readline.ErrInterrupt):
			logging.Warn(subsystem, "Prompt closed, aborting")
		default:
			logging.Error(subsystem, err, "Prompt failed, aborting")
		}
		return Abort
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		logging.Info(subsystem, "Operator chose to continue after %s failed", failed.Name)
		return Continue
	default:
		logging.Info(subsystem, "Operator chose to abort after %s failed", failed.Name)
		return Abort
	}
}

// ReadlinePrompter reads answers from a terminal with readline.
type ReadlinePrompter struct {
	// Stdin and Stdout default to the process's standard streams.
	Stdin  io.ReadCloser
	Stdout io.Writer
}

// Ask shows question as the prompt and returns the entered line. It gives up
// when ctx is done.
func (p ReadlinePrompter) Ask(ctx context.Context, question string) (string, error) {
	lines := strings.Split(question, "\n")
	prompt := lines[len(lines)-1]

	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 prompt,
		Stdin:                  p.Stdin,
		Stdout:                 p.Stdout,
		HistoryLimit:           -1,
		InterruptPrompt:        "^C",
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to open prompt: %w", err)
	}
	defer rl.Close()

	for _, l := range lines[:len(lines)-1] {
		fmt.Fprintln(rl.Stdout(), l)
	}

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := rl.Readline()
		ch <- answer{line: line, err: err}
	}()

	select {
	case a := <-ch:
		return a.line, a.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
