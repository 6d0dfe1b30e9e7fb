// Package sysinfo reports host-level resource usage for status output.
package sysinfo

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"
)

// Memory is a snapshot of host memory usage in bytes.
type Memory struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"usedPercent"`
}

// MemoryReader returns the current host memory usage.
type MemoryReader func(ctx context.Context) (Memory, error)

// ReadMemory reads host memory usage from the operating system.
func ReadMemory(ctx context.Context) (Memory, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Memory{}, fmt.Errorf("failed to read memory usage: %w", err)
	}
	return Memory{
		Total:       vm.Total,
		Used:        vm.Used,
		Available:   vm.Available,
		UsedPercent: vm.UsedPercent,
	}, nil
}
