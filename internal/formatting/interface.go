// Package formatting renders orchestration runs and reports for the CLI.
//
// Three output formats are supported: a go-pretty table for operators, and
// JSON or YAML for scripts. Every formatter writes to Options.Out.
package formatting

import (
	"fmt"
	"io"
	"os"
	"strings"

	"cloudphone/internal/orchestrator"
	"cloudphone/internal/services"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat validates a --output value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", s)
	}
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Color  bool      // Enable colored output and box drawing
	Out    io.Writer // Defaults to os.Stdout
}

// Formatter renders the results of orchestrator operations.
type Formatter interface {
	FormatRun(run *services.Run) error
	FormatStatus(report orchestrator.StatusReport) error
	FormatHealth(report orchestrator.HealthReport) error
	FormatDeps(report orchestrator.DepsReport) error
}

// New creates the formatter for options.Format.
func New(options Options) Formatter {
	if options.Out == nil {
		options.Out = os.Stdout
	}
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	default:
		return NewTableFormatter(options)
	}
}
