package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statsBody(t *testing.T, stats container.StatsResponse) container.StatsResponseReader {
	t.Helper()
	raw, err := json.Marshal(stats)
	require.NoError(t, err)
	return container.StatsResponseReader{Body: io.NopCloser(bytes.NewReader(raw))}
}

func TestCollect_ZeroDurationReturnsEmptyMetrics(t *testing.T) {
	m := NewMonitor(&fakeAPI{})

	metrics, err := m.Collect(context.Background(), "deadbeefcafe0000", 0, time.Second)
	require.NoError(t, err)
	assert.Empty(t, metrics.Snapshots)
	assert.Equal(t, metrics.StartTime, metrics.EndTime)
	assert.Zero(t, metrics.AvgCPU())
}

func TestCollect_UnknownContainer(t *testing.T) {
	api := &fakeAPI{
		inspectFn: func(context.Context, string) (types.ContainerJSON, error) {
			return types.ContainerJSON{}, errdefs.NotFound(errors.New("no such container"))
		},
	}
	m := NewMonitor(api)

	_, err := m.Collect(context.Background(), "gone", time.Second, time.Second)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestCollect_SamplesUntilDeadline(t *testing.T) {
	stats := statsFixture(50, 1000, 2)
	stats.MemoryStats.Usage = 512
	stats.MemoryStats.Limit = 1024

	samples := 0
	api := &fakeAPI{
		inspectFn: func(_ context.Context, id string) (types.ContainerJSON, error) {
			return inspectResponse(id, StatusRunning), nil
		},
		statsFn: func(context.Context, string, bool) (container.StatsResponseReader, error) {
			samples++
			return statsBody(t, stats), nil
		},
	}
	m := NewMonitor(api)

	metrics, err := m.Collect(context.Background(), "deadbeefcafe0000", 50*time.Millisecond, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, samples, len(metrics.Snapshots))
	assert.GreaterOrEqual(t, len(metrics.Snapshots), 2)
	assert.InDelta(t, 10.0, metrics.AvgCPU(), 0.001)
	assert.EqualValues(t, 512, metrics.MaxMemory())
	assert.True(t, metrics.EndTime.After(metrics.StartTime) || metrics.EndTime.Equal(metrics.StartTime))
}

func TestCollect_MidWindowFailureDiscardsWindow(t *testing.T) {
	samples := 0
	api := &fakeAPI{
		inspectFn: func(_ context.Context, id string) (types.ContainerJSON, error) {
			return inspectResponse(id, StatusRunning), nil
		},
		statsFn: func(context.Context, string, bool) (container.StatsResponseReader, error) {
			samples++
			if samples > 1 {
				return container.StatsResponseReader{}, errors.New("daemon went away")
			}
			return statsBody(t, statsFixture(50, 1000, 2)), nil
		},
	}
	m := NewMonitor(api)

	metrics, err := m.Collect(context.Background(), "deadbeefcafe0000", 100*time.Millisecond, 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMonitor))
	assert.Nil(t, metrics, "partial windows must not leak out")
}

func TestCollect_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeAPI{
		inspectFn: func(_ context.Context, id string) (types.ContainerJSON, error) {
			return inspectResponse(id, StatusRunning), nil
		},
		statsFn: func(context.Context, string, bool) (container.StatsResponseReader, error) {
			cancel()
			return statsBody(t, statsFixture(50, 1000, 2)), nil
		},
	}
	m := NewMonitor(api)

	_, err := m.Collect(ctx, "deadbeefcafe0000", time.Minute, 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMonitor))
	assert.ErrorIs(t, err, context.Canceled)
}
