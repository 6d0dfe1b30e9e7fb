package formatting

import (
	"encoding/json"
	"fmt"

	"cloudphone/internal/orchestrator"
	"cloudphone/internal/services"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{options: options}
}

func (f *JSONFormatter) FormatRun(run *services.Run) error {
	return f.write(newRunDocument(run))
}

func (f *JSONFormatter) FormatStatus(report orchestrator.StatusReport) error {
	return f.write(newStatusDocument(report))
}

func (f *JSONFormatter) FormatHealth(report orchestrator.HealthReport) error {
	return f.write(report)
}

func (f *JSONFormatter) FormatDeps(report orchestrator.DepsReport) error {
	return f.write(report)
}

func (f *JSONFormatter) write(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	_, err = fmt.Fprintln(f.options.Out, string(b))
	return err
}
