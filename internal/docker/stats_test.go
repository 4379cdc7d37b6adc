package docker

import (
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
)

func statsFixture(cpuDelta, sysDelta uint64, onlineCPUs uint32) container.StatsResponse {
	var resp container.StatsResponse
	resp.PreCPUStats.CPUUsage.TotalUsage = 1000
	resp.PreCPUStats.SystemUsage = 10000
	resp.CPUStats.CPUUsage.TotalUsage = 1000 + cpuDelta
	resp.CPUStats.SystemUsage = 10000 + sysDelta
	resp.CPUStats.OnlineCPUs = onlineCPUs
	return resp
}

func TestCalculateCPUPercent(t *testing.T) {
	// 50 of 1000 system ticks across 4 CPUs is 20 percent.
	stats := statsFixture(50, 1000, 4)
	assert.InDelta(t, 20.0, calculateCPUPercent(stats), 0.001)
}

func TestCalculateCPUPercent_ZeroSystemDelta(t *testing.T) {
	stats := statsFixture(50, 0, 4)
	assert.Zero(t, calculateCPUPercent(stats))
}

func TestCalculateCPUPercent_FallsBackToPercpuUsage(t *testing.T) {
	stats := statsFixture(50, 1000, 0)
	stats.CPUStats.CPUUsage.PercpuUsage = []uint64{1, 2}
	assert.InDelta(t, 10.0, calculateCPUPercent(stats), 0.001)
}

func TestCalculateMemoryPercent(t *testing.T) {
	assert.InDelta(t, 25.0, calculateMemoryPercent(256, 1024), 0.001)
	assert.Zero(t, calculateMemoryPercent(256, 0))
}

func TestSnapshotFromStats_SumsNetworksAndBlkio(t *testing.T) {
	stats := statsFixture(50, 1000, 2)
	stats.MemoryStats.Usage = 512
	stats.MemoryStats.Limit = 1024
	stats.Networks = map[string]container.NetworkStats{
		"eth0": {RxBytes: 10, TxBytes: 20},
		"eth1": {RxBytes: 1, TxBytes: 2},
	}
	stats.BlkioStats.IoServiceBytesRecursive = []container.BlkioStatEntry{
		{Op: "Read", Value: 100},
		{Op: "write", Value: 200},
		{Op: "read", Value: 50},
		{Op: "total", Value: 999},
	}
	stats.PidsStats.Current = 7

	snap := snapshotFromStats(stats)
	assert.EqualValues(t, 512, snap.MemoryUsage)
	assert.EqualValues(t, 1024, snap.MemoryLimit)
	assert.InDelta(t, 50.0, snap.MemoryPercent, 0.001)
	assert.EqualValues(t, 11, snap.NetworkRxBytes)
	assert.EqualValues(t, 22, snap.NetworkTxBytes)
	assert.EqualValues(t, 150, snap.BlockReadBytes)
	assert.EqualValues(t, 200, snap.BlockWriteBytes)
	assert.EqualValues(t, 7, snap.PidsCurrent)
}

func TestResourceMetrics_Aggregates(t *testing.T) {
	m := &ResourceMetrics{
		Snapshots: []ResourceSnapshot{
			{CPUPercent: 10, MemoryUsage: 100},
			{CPUPercent: 30, MemoryUsage: 300},
			{CPUPercent: 20, MemoryUsage: 200},
		},
	}
	assert.InDelta(t, 20.0, m.AvgCPU(), 0.001)
	assert.InDelta(t, 30.0, m.MaxCPU(), 0.001)
	assert.EqualValues(t, 200, m.AvgMemory())
	assert.EqualValues(t, 300, m.MaxMemory())
}

func TestResourceMetrics_EmptyAggregates(t *testing.T) {
	m := &ResourceMetrics{StartTime: time.Now(), EndTime: time.Now()}
	assert.Zero(t, m.AvgCPU())
	assert.Zero(t, m.MaxCPU())
	assert.Zero(t, m.AvgMemory())
	assert.Zero(t, m.MaxMemory())
}
