package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cloudphone/internal/config"
	"cloudphone/internal/containerizer"
	"cloudphone/internal/formatting"
	"cloudphone/internal/health"
	"cloudphone/internal/orchestrator"
	"cloudphone/internal/services"
	"cloudphone/internal/supervisor"
	"cloudphone/internal/sysinfo"
	"cloudphone/pkg/logging"
)

const cliSubsystem = "CLI"

// Collaborator constructors, replaced in tests.
var (
	newSupervisor = func(ctx context.Context, reg *services.Registry, cfg config.SupervisorConfig) (supervisor.Supervisor, func(), error) {
		sd, err := supervisor.NewSystemd(ctx, reg, supervisor.SystemdOptions{
			UserBus: cfg.Bus == config.BusUser,
			Target:  cfg.Target,
		})
		if err != nil {
			return nil, nil, err
		}
		return sd, sd.Close, nil
	}

	newRunner = func() health.Runner {
		return health.NewExecutor()
	}

	newClock = func() health.Clock {
		return health.RealClock{}
	}

	newContainerRuntime = containerizer.NewContainerRuntime

	readMemory sysinfo.MemoryReader = sysinfo.ReadMemory

	stdoutIsTerminal = func() bool {
		return term.IsTerminal(int(os.Stdout.Fd()))
	}

	stderrIsTerminal = func() bool {
		return term.IsTerminal(int(os.Stderr.Fd()))
	}
)

// app holds everything a command needs for one invocation.
type app struct {
	cfg       config.Config
	orch      *orchestrator.Orchestrator
	formatter formatting.Formatter
	close     func()
}

func (a *app) Close() {
	if a.close != nil {
		a.close()
	}
}

// setup loads the configuration, builds the registry and wires the
// orchestrator. Any configuration problem is returned before the supervisor
// is contacted.
func setup(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	format, err := formatting.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}

	path, err := config.ResolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logging.Error(cliSubsystem, err, "Invalid configuration in %s", path)
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	reg, err := cfg.Registry()
	if err != nil {
		logging.Error(cliSubsystem, err, "Invalid service registry in %s", path)
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	sup, closeSup, err := newSupervisor(ctx, reg, cfg.Supervisor)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the service supervisor: %w", err)
	}

	runner := newRunner()
	clock := newClock()
	poller := health.NewPoller(runner)
	poller.Interval = cfg.Poll.Interval.Duration()
	poller.Clock = clock

	orchCfg := orchestrator.Config{
		Registry:        reg,
		Supervisor:      sup,
		Runner:          runner,
		Poller:          poller,
		Escalation:      escalationPolicy(cfg),
		ContainerFilter: cfg.Containers.Filter,
		Memory:          readMemory,
		SettleDelay:     cfg.Restart.SettleDelay.Duration(),
		Clock:           clock,
	}

	rt, err := newContainerRuntime(cfg.Containers.Runtime)
	if err != nil {
		logging.Debug(cliSubsystem, "Container runtime unavailable: %v", err)
		rt = unavailableRuntime{err: err}
	}
	orchCfg.Containers = rt

	if format == formatting.FormatTable && !quiet && stderrIsTerminal() {
		p := newProgress(cmd.ErrOrStderr())
		orchCfg.Observer = p
		poller.OnAttempt = p.attempt
	}

	return &app{
		cfg:  cfg,
		orch: orchestrator.New(orchCfg),
		formatter: formatting.New(formatting.Options{
			Format: format,
			Color:  stdoutIsTerminal(),
			Out:    cmd.OutOrStdout(),
		}),
		close: closeSup,
	}, nil
}

// escalationPolicy prompts only when neither the flag nor the configuration
// asks for unattended operation.
func escalationPolicy(cfg config.Config) orchestrator.EscalationPolicy {
	if unattended || cfg.Escalation.Unattended {
		return orchestrator.Unattended{}
	}
	return orchestrator.Attended{
		Prompter: orchestrator.ReadlinePrompter{},
		Timeout:  cfg.Escalation.PromptTimeout.Duration(),
	}
}

// unavailableRuntime reports why no container runtime could be used.
type unavailableRuntime struct {
	err error
}

func (u unavailableRuntime) ListContainers(context.Context, string) ([]containerizer.ContainerInfo, error) {
	return nil, u.err
}

func (u unavailableRuntime) IsContainerRunning(context.Context, string) (bool, error) {
	return false, u.err
}
