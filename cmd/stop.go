package cmd

import (
	"github.com/spf13/cobra"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop all services in reverse priority order",
		Long: `Stop every running service in descending priority order, then stop the
supervisor target grouping them. Shutdown is best effort: a service that fails
to stop is reported and the remaining services are still stopped.

Exits 0 once the configuration is valid, unless the run is interrupted: then
the services not yet reached are left as they are and the exit code is 130.`,
		Args: cobra.NoArgs,
		RunE: runStop,
	}
}

func runStop(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	run := a.orch.StopAll(cmd.Context())
	if err := a.formatter.FormatRun(run); err != nil {
		return err
	}
	if run.Interrupted {
		return runExit(run, "")
	}
	return nil
}
