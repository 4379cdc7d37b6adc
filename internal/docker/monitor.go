package docker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// Monitor samples a container's cgroup stats over a fixed window.
// Collect blocks for the whole window; run it on its own goroutine
// and cancel through the context if early termination is needed.
type Monitor struct {
	api apiClient
}

// NewMonitor wraps an engine client for stats collection.
func NewMonitor(api apiClient) *Monitor {
	return &Monitor{api: api}
}

// Collect takes one snapshot every interval until duration has
// elapsed. A duration of zero or less returns an empty metrics set
// immediately. A failure mid-window discards the whole window: the
// caller gets an error and no partial data.
func (m *Monitor) Collect(ctx context.Context, containerID string, duration, interval time.Duration) (*ResourceMetrics, error) {
	const op = "monitor.collect"

	metrics := &ResourceMetrics{
		ContainerID: containerID,
		StartTime:   time.Now().UTC(),
	}
	if duration <= 0 {
		metrics.EndTime = metrics.StartTime
		return metrics, nil
	}
	if interval <= 0 {
		interval = time.Second
	}

	if _, err := m.api.ContainerInspect(ctx, containerID); err != nil {
		if client.IsErrNotFound(err) {
			return nil, wrapErr(KindNotFound, op, err)
		}
		return nil, wrapErr(KindMonitor, op, err)
	}

	log.Debug("collecting resource metrics",
		"container_id", shortID(containerID),
		"duration", duration,
		"interval", interval)

	deadline := time.Now().Add(duration)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		snap, err := m.sample(ctx, containerID)
		if err != nil {
			return nil, wrapErr(KindMonitor, op, err)
		}
		metrics.Snapshots = append(metrics.Snapshots, snap)

		select {
		case <-ctx.Done():
			return nil, wrapErr(KindMonitor, op, ctx.Err())
		case <-ticker.C:
		}
	}

	metrics.EndTime = time.Now().UTC()
	return metrics, nil
}

// sample performs one non-streaming stats call. The engine primes the
// precpu fields on non-streaming requests, so each response carries
// the deltas the CPU formula needs.
func (m *Monitor) sample(ctx context.Context, containerID string) (ResourceSnapshot, error) {
	reader, err := m.api.ContainerStats(ctx, containerID, false)
	if err != nil {
		return ResourceSnapshot{}, err
	}
	defer reader.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(reader.Body).Decode(&stats); err != nil {
		return ResourceSnapshot{}, err
	}

	return snapshotFromStats(stats), nil
}
