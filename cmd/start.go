package cmd

import (
	"github.com/spf13/cobra"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start all services in priority order",
		Long: `Start every service in ascending priority order. Each service must pass its
health check before the next one is started; services that are already running
are left alone.

When a service fails and the run is attended, you are asked whether to go on
with the remaining services. With --unattended the run always goes on.

The exit code is the number of services that failed (capped at 255), or 130
when the run is interrupted.`,
		Args: cobra.NoArgs,
		RunE: runStart,
	}
}

func runStart(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	run := a.orch.StartAll(cmd.Context())
	if err := a.formatter.FormatRun(run); err != nil {
		return err
	}
	return runExit(run, "%d services failed to start")
}

func newRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop all services, wait, then start them again",
		Long: `Stop every service in reverse priority order, wait for the configured settle
delay, then start every service in priority order.

The exit code is the number of services that failed to start (capped at 255),
or 130 when the run is interrupted.`,
		Args: cobra.NoArgs,
		RunE: runRestart,
	}
}

func runRestart(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	run := a.orch.RestartAll(cmd.Context())
	if err := a.formatter.FormatRun(run); err != nil {
		return err
	}
	return runExit(run, "%d services failed to start")
}
