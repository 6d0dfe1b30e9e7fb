package containerizer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"cloudphone/pkg/logging"
)

const dockerSubsystem = "Docker"

// psFormat is understood by both docker and podman.
const psFormat = "{{.ID}}\t{{.Names}}\t{{.Image}}\t{{.State}}\t{{.Status}}"

// CLIRuntime implements ContainerRuntime by shelling out to a docker
// compatible CLI.
type CLIRuntime struct {
	binary string
}

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

// lookPath is a variable to allow mocking in tests
var lookPath = exec.LookPath

// NewDockerRuntime creates a new Docker runtime instance
func NewDockerRuntime() (*CLIRuntime, error) {
	return newCLIRuntime("docker")
}

// NewPodmanRuntime creates a runtime backed by the podman CLI.
func NewPodmanRuntime() (*CLIRuntime, error) {
	return newCLIRuntime("podman")
}

func newCLIRuntime(binary string) (*CLIRuntime, error) {
	if _, err := lookPath(binary); err != nil {
		return nil, fmt.Errorf("%s command not found in PATH: %w", binary, err)
	}
	return &CLIRuntime{binary: binary}, nil
}

// ListContainers lists containers whose name matches filter.
func (d *CLIRuntime) ListContainers(ctx context.Context, filter string) ([]ContainerInfo, error) {
	args := []string{"ps", "--all", "--no-trunc", "--format", psFormat}
	if filter != "" {
		args = append(args, "--filter", "name="+filter)
	}

	logging.Debug(dockerSubsystem, "Listing containers with command: %s %s", d.binary, strings.Join(args, " "))

	cmd := execCommandContext(ctx, d.binary, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return parsePS(string(output))
}

// IsContainerRunning checks if a container is running
func (d *CLIRuntime) IsContainerRunning(ctx context.Context, name string) (bool, error) {
	cmd := execCommandContext(ctx, d.binary, "inspect", "-f", "{{.State.Running}}", name)
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}
	return strings.TrimSpace(string(output)) == "true", nil
}

func parsePS(output string) ([]ContainerInfo, error) {
	var containers []ContainerInfo
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 5 {
			return nil, fmt.Errorf("unexpected ps output line: %q", line)
		}
		id := fields[0]
		if len(id) > 12 {
			id = id[:12]
		}
		containers = append(containers, ContainerInfo{
			ID:     id,
			Name:   fields[1],
			Image:  fields[2],
			State:  strings.ToLower(fields[3]),
			Status: fields[4],
		})
	}
	return containers, nil
}
