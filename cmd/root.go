package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cloudphone/internal/services"
	"cloudphone/pkg/logging"
)

// Exit codes for CLI commands.
// start and restart exit with the number of failed services and health with
// the number of failed checks, both capped at ExitCodeMax.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (invalid configuration, bad flags).
	ExitCodeError = 1
	// ExitCodeInterrupted reports a run cut short by SIGINT or SIGTERM, the
	// shell convention for a process ended by SIGINT.
	ExitCodeInterrupted = 130
	// ExitCodeMax is the largest exit status a process can report.
	ExitCodeMax = 255
)

// ExitError carries a specific exit code out of a command.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// countExit returns nil for zero and an *ExitError with count as the exit
// code otherwise.
func countExit(count int, format string) error {
	if count <= 0 {
		return nil
	}
	code := count
	if code > ExitCodeMax {
		code = ExitCodeMax
	}
	return &ExitError{Code: code, Message: fmt.Sprintf(format, count)}
}

// runExit maps a finished run to the command's error. An interrupted run
// always fails; otherwise the failed services are counted.
func runExit(run *services.Run, format string) error {
	if run.Interrupted {
		return &ExitError{Code: ExitCodeInterrupted, Message: fmt.Sprintf("%s interrupted", run.Operation)}
	}
	return countExit(run.FailedCount(), format)
}

var (
	configPath   string
	unattended   bool
	debug        bool
	quiet        bool
	outputFormat string
	logLevel     string
)

// rootCmd represents the base command for the cloudphone application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cloudphone",
	Short: "Start, stop and health-check the services of a cloud-phone host",
	Long: `cloudphone orchestrates the services of a cloud-phone host: the Android
container runtime, the camera/microphone streaming bridge, the REST control
endpoint and the log aggregator.

Services start one at a time in priority order and each must pass its health
check before the next one is started. They stop in the reverse order.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// It runs the root command with a context cancelled on SIGINT or SIGTERM and
// exits with the code derived from the returned error. A cancelled run ends
// before its next service and exits with ExitCodeInterrupted.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "cloudphone version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	// Configuration problems and everything else
	return ExitCodeError
}

func initLogging(cmd *cobra.Command, _ []string) error {
	level := logging.LevelInfo
	if logLevel != "" {
		parsed, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		level = parsed
	}
	switch {
	case debug:
		level = logging.LevelDebug
	case quiet:
		level = logging.LevelWarn
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "",
		"Configuration directory (default $CLOUDPHONE_CONFIG_PATH or ~/.config/cloudphone)")
	rootCmd.PersistentFlags().BoolVar(&unattended, "unattended", false,
		"Never prompt: continue past failed services (also $CLOUDPHONE_UNATTENDED)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (--debug and --quiet take precedence)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and hide progress")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json or yaml")

	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(newStopCmd())
	rootCmd.AddCommand(newRestartCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newDepsCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
