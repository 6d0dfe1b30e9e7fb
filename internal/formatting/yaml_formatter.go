package formatting

import (
	"fmt"

	"sigs.k8s.io/yaml"

	"cloudphone/internal/orchestrator"
	"cloudphone/internal/services"
)

// YAMLFormatter provides YAML output formatting. Field names follow the JSON
// tags so both machine formats share one schema.
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{options: options}
}

func (f *YAMLFormatter) FormatRun(run *services.Run) error {
	return f.write(newRunDocument(run))
}

func (f *YAMLFormatter) FormatStatus(report orchestrator.StatusReport) error {
	return f.write(newStatusDocument(report))
}

func (f *YAMLFormatter) FormatHealth(report orchestrator.HealthReport) error {
	return f.write(report)
}

func (f *YAMLFormatter) FormatDeps(report orchestrator.DepsReport) error {
	return f.write(report)
}

func (f *YAMLFormatter) write(v interface{}) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode YAML output: %w", err)
	}
	_, err = f.options.Out.Write(b)
	return err
}
