package docker

import (
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
)

// ResourceSnapshot is one timestamped stats sample for a container.
type ResourceSnapshot struct {
	Timestamp       time.Time `json:"timestamp"`
	CPUPercent      float64   `json:"cpu_percent"`
	MemoryUsage     uint64    `json:"memory_usage"`
	MemoryLimit     uint64    `json:"memory_limit"`
	MemoryPercent   float64   `json:"memory_percent"`
	NetworkRxBytes  uint64    `json:"network_rx_bytes"`
	NetworkTxBytes  uint64    `json:"network_tx_bytes"`
	BlockReadBytes  uint64    `json:"block_read_bytes"`
	BlockWriteBytes uint64    `json:"block_write_bytes"`
	PidsCurrent     uint64    `json:"pids_current"`
}

// ResourceMetrics is the ordered result of one sampling window.
// Created fresh per Collect call and never persisted.
type ResourceMetrics struct {
	ContainerID string             `json:"container_id"`
	StartTime   time.Time          `json:"start_time"`
	EndTime     time.Time          `json:"end_time"`
	Snapshots   []ResourceSnapshot `json:"snapshots"`
}

// AvgCPU returns the mean CPU percentage, 0.0 for an empty window.
func (m *ResourceMetrics) AvgCPU() float64 {
	if len(m.Snapshots) == 0 {
		return 0.0
	}
	var sum float64
	for _, s := range m.Snapshots {
		sum += s.CPUPercent
	}
	return sum / float64(len(m.Snapshots))
}

// MaxCPU returns the peak CPU percentage, 0.0 for an empty window.
func (m *ResourceMetrics) MaxCPU() float64 {
	var max float64
	for _, s := range m.Snapshots {
		if s.CPUPercent > max {
			max = s.CPUPercent
		}
	}
	return max
}

// AvgMemory returns the mean memory usage in bytes, 0 for an empty
// window.
func (m *ResourceMetrics) AvgMemory() uint64 {
	if len(m.Snapshots) == 0 {
		return 0
	}
	var sum uint64
	for _, s := range m.Snapshots {
		sum += s.MemoryUsage
	}
	return sum / uint64(len(m.Snapshots))
}

// MaxMemory returns the peak memory usage in bytes, 0 for an empty
// window.
func (m *ResourceMetrics) MaxMemory() uint64 {
	var max uint64
	for _, s := range m.Snapshots {
		if s.MemoryUsage > max {
			max = s.MemoryUsage
		}
	}
	return max
}

// snapshotFromStats reduces a raw engine stats response to one sample.
func snapshotFromStats(stats container.StatsResponse) ResourceSnapshot {
	snap := ResourceSnapshot{
		Timestamp:     time.Now().UTC(),
		CPUPercent:    calculateCPUPercent(stats),
		MemoryUsage:   stats.MemoryStats.Usage,
		MemoryLimit:   stats.MemoryStats.Limit,
		MemoryPercent: calculateMemoryPercent(stats.MemoryStats.Usage, stats.MemoryStats.Limit),
		PidsCurrent:   stats.PidsStats.Current,
	}

	for _, nw := range stats.Networks {
		snap.NetworkRxBytes += nw.RxBytes
		snap.NetworkTxBytes += nw.TxBytes
	}

	for _, entry := range stats.BlkioStats.IoServiceBytesRecursive {
		switch strings.ToLower(entry.Op) {
		case "read":
			snap.BlockReadBytes += entry.Value
		case "write":
			snap.BlockWriteBytes += entry.Value
		}
	}

	return snap
}

// calculateCPUPercent applies the engine's delta formula: the change
// in container CPU time over the change in system CPU time, scaled by
// the number of online CPUs. Both deltas come from the precpu sample
// the engine embeds in each response.
func calculateCPUPercent(stats container.StatsResponse) float64 {
	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)
	if systemDelta <= 0 || cpuDelta < 0 {
		return 0.0
	}

	numCPUs := float64(stats.CPUStats.OnlineCPUs)
	if numCPUs == 0 {
		numCPUs = float64(len(stats.CPUStats.CPUUsage.PercpuUsage))
	}
	if numCPUs == 0 {
		numCPUs = 1
	}

	return cpuDelta / systemDelta * numCPUs * 100.0
}

func calculateMemoryPercent(usage, limit uint64) float64 {
	if limit == 0 {
		return 0.0
	}
	return float64(usage) / float64(limit) * 100.0
}
