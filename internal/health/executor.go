package health

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const (
	// DefaultProbeTimeout bounds a single port or HTTP probe.
	DefaultProbeTimeout = 2 * time.Second

	// DefaultCommandTimeout bounds a single command check.
	DefaultCommandTimeout = 10 * time.Second
)

// Runner executes a single health predicate once.
type Runner interface {
	Run(ctx context.Context, check PredicateSpec) (bool, error)
}

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

// processNames lists the names of all running processes.
var processNames = func(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Process exited between listing and inspection.
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Executor is the default Runner. It performs process, port, HTTP, file and
// command checks.
type Executor struct {
	ProbeTimeout   time.Duration
	CommandTimeout time.Duration
	Client         *http.Client
}

// NewExecutor returns an Executor with default timeouts.
func NewExecutor() *Executor {
	return &Executor{
		ProbeTimeout:   DefaultProbeTimeout,
		CommandTimeout: DefaultCommandTimeout,
	}
}

// Run executes check once. A false result with a nil error means the check
// ran and did not pass; a non-nil error is always an *ExecError.
func (e *Executor) Run(ctx context.Context, check PredicateSpec) (bool, error) {
	var (
		ok  bool
		err error
	)
	switch check.Type {
	case TypeProcess:
		ok, err = e.checkProcess(ctx, check.Process)
	case TypePort:
		ok = e.checkPort(ctx, check.Address)
	case TypeHTTP:
		ok, err = e.checkHTTP(ctx, check.URL, check.ExpectStatus)
	case TypeFile:
		ok, err = checkFile(check.Path)
	case TypeCommand:
		ok, err = e.checkCommand(ctx, check.Command, check.Expect)
	default:
		err = fmt.Errorf("unknown health check type %q", check.Type)
	}
	if err != nil {
		return false, &ExecError{Check: check, Err: err}
	}
	return ok, nil
}

func (e *Executor) probeTimeout() time.Duration {
	if e.ProbeTimeout > 0 {
		return e.ProbeTimeout
	}
	return DefaultProbeTimeout
}

func (e *Executor) checkProcess(ctx context.Context, name string) (bool, error) {
	names, err := processNames(ctx)
	if err != nil {
		return false, fmt.Errorf("listing processes: %w", err)
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func (e *Executor) checkPort(ctx context.Context, addr string) bool {
	d := net.Dialer{Timeout: e.probeTimeout()}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (e *Executor) checkHTTP(ctx context.Context, url string, expect int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.probeTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	client := e.Client
	if client == nil {
		client = &http.Client{Timeout: e.probeTimeout()}
	}
	resp, err := client.Do(req)
	if err != nil {
		// Connection refused and friends: the endpoint is simply not ready.
		return false, nil
	}
	resp.Body.Close()

	if expect != 0 {
		return resp.StatusCode == expect, nil
	}
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

func checkFile(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (e *Executor) checkCommand(ctx context.Context, argv []string, expect string) (bool, error) {
	timeout := e.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout bytes.Buffer
	cmd := execCommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, err
	}

	if expect != "" {
		return strings.TrimSpace(stdout.String()) == expect, nil
	}
	return true, nil
}
