package cmd

import (
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether each service is running",
		Long: `Show the liveness of every service with its PID, uptime and memory where the
supervisor knows them, plus host memory and the Android containers.

Status reports liveness, not health; use "health" to run the checks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.formatter.FormatStatus(a.orch.Status(cmd.Context()))
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Run every running service's health check once",
		Long: `Run the health check of every running service once and report PASS or FAIL.
Services that are not running are reported as SKIPPED.

The exit code is the number of failed checks (capped at 255).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report := a.orch.Health(cmd.Context())
			if err := a.formatter.FormatHealth(report); err != nil {
				return err
			}
			return countExit(report.Failed(), "%d health checks failed")
		},
	}
}

func newDepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Show the supervisor's dependency metadata for each service",
		Long: `Show what each service requires, wants and is ordered after according to the
service supervisor, and which services require or want it in turn.

This is informational: start and stop order always follow priority.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.formatter.FormatDeps(a.orch.Deps(cmd.Context()))
		},
	}
}
