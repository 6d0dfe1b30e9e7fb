package containerizer

import (
	"fmt"
	"strings"
)

// RuntimeType names a docker compatible CLI.
type RuntimeType string

const (
	RuntimeTypeDocker RuntimeType = "docker"
	RuntimeTypePodman RuntimeType = "podman"
)

// SupportedRuntimes lists the accepted values of containers.runtime.
func SupportedRuntimes() []string {
	return []string{string(RuntimeTypeDocker), string(RuntimeTypePodman)}
}

// ParseRuntime normalizes a configured runtime name. Empty means docker.
func ParseRuntime(name string) (RuntimeType, error) {
	switch rt := RuntimeType(strings.ToLower(strings.TrimSpace(name))); rt {
	case "":
		return RuntimeTypeDocker, nil
	case RuntimeTypeDocker, RuntimeTypePodman:
		return rt, nil
	default:
		return "", fmt.Errorf("unsupported container runtime %q (want one of %s)",
			name, strings.Join(SupportedRuntimes(), ", "))
	}
}

// NewContainerRuntime returns the CLI runtime for name. It fails when the
// name is unknown or the binary is not installed.
func NewContainerRuntime(name string) (ContainerRuntime, error) {
	rt, err := ParseRuntime(name)
	if err != nil {
		return nil, err
	}
	return newCLIRuntime(string(rt))
}
