package containerizer

import (
	"context"
)

// ContainerRuntime defines the read-only container runtime operations the
// orchestrator needs for its status snapshot.
type ContainerRuntime interface {
	// ListContainers returns the containers matching filter. An empty filter
	// returns every container, running or not.
	ListContainers(ctx context.Context, filter string) ([]ContainerInfo, error)

	// IsContainerRunning checks if a container is running
	IsContainerRunning(ctx context.Context, name string) (bool, error)
}

// ContainerInfo describes one container as reported by the runtime.
type ContainerInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	State  string `json:"state"`  // running, exited, created...
	Status string `json:"status"` // human readable, e.g. "Up 3 hours"
}

// Running reports whether the container is in the running state.
func (c ContainerInfo) Running() bool {
	return c.State == "running"
}
