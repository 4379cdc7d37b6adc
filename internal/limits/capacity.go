package limits

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostCapacity is a point-in-time view of the machine's total
// resources, queried at validation time.
type HostCapacity struct {
	CPUCores    int
	MemoryBytes uint64
	DiskBytes   uint64
}

// probeCapacity queries live host capacity. Swapped out in tests.
var probeCapacity = func() (HostCapacity, error) {
	cores, err := cpu.Counts(true)
	if err != nil {
		return HostCapacity{}, fmt.Errorf("query cpu count: %w", err)
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return HostCapacity{}, fmt.Errorf("query memory: %w", err)
	}
	du, err := disk.Usage("/")
	if err != nil {
		return HostCapacity{}, fmt.Errorf("query root filesystem: %w", err)
	}
	return HostCapacity{
		CPUCores:    cores,
		MemoryBytes: vm.Total,
		DiskBytes:   du.Total,
	}, nil
}
