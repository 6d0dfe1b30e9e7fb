// Package logging provides the subsystem-scoped structured logger used across
// cloudphone.
//
// The logger is a thin layer over log/slog. Every entry carries the subsystem
// that produced it, an optional error, and any run-scoped attributes that were
// installed with SetRunAttrs (the orchestrator installs the run ID there for
// the duration of a start, stop or restart run).
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Orchestrator", "Starting %s", name)
//	logging.Warn("HealthPoller", "Predicate for %s could not run: %v", name, err)
//	logging.Error("Supervisor", err, "Failed to stop %s", unit)
//
// # Subsystems
//
//   - **Config**: configuration loading and validation
//   - **Orchestrator**: lifecycle runs and escalation
//   - **HealthPoller**: readiness polling
//   - **Supervisor**: systemd job handling
//   - **Docker**: container snapshot queries
//
// Output goes to a text handler; the level is fixed at initialisation and
// filtered before formatting, so suppressed entries cost almost nothing.
package logging
