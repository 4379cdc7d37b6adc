package limits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCapacity pins host capacity to a known machine for the duration
// of a test: 8 cores, 16 GiB memory, 100 GiB root filesystem.
func stubCapacity(t *testing.T) {
	t.Helper()
	orig := probeCapacity
	probeCapacity = func() (HostCapacity, error) {
		return HostCapacity{
			CPUCores:    8,
			MemoryBytes: 16 << 30,
			DiskBytes:   100 << 30,
		}, nil
	}
	t.Cleanup(func() { probeCapacity = orig })
}

func TestNew_WithinCapacity(t *testing.T) {
	stubCapacity(t)

	l, err := New(2.0, 4<<30, 10<<30)
	require.NoError(t, err)
	assert.Equal(t, 2.0, l.CPULimit)
	assert.Equal(t, int64(4<<30), l.MemoryLimit)
	assert.Equal(t, int64(DefaultCPUShares), l.CPUShares)
	assert.Equal(t, int64(Unlimited), l.PidsLimit)
}

func TestNew_ZeroMeansUnset(t *testing.T) {
	stubCapacity(t)

	l, err := New(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "unlimited", l.String())
}

func TestValidate_RejectsAboveHostHeadroom(t *testing.T) {
	stubCapacity(t)

	tests := []struct {
		name string
		l    ResourceLimits
	}{
		// 98% of 8 cores = 7.84
		{name: "cpu above headroom", l: ResourceLimits{CPULimit: 7.9, MemorySwap: Unlimited, CPUShares: DefaultCPUShares, PidsLimit: Unlimited}},
		// 98% of 16 GiB
		{name: "memory above headroom", l: ResourceLimits{MemoryLimit: 16 << 30, MemorySwap: Unlimited, CPUShares: DefaultCPUShares, PidsLimit: Unlimited}},
		// 98% of 100 GiB
		{name: "disk above headroom", l: ResourceLimits{DiskLimit: 99 << 30, MemorySwap: Unlimited, CPUShares: DefaultCPUShares, PidsLimit: Unlimited}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.l.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidate_RejectsAbsoluteCeilings(t *testing.T) {
	// Capacity large enough that only the absolute ceiling can trip.
	orig := probeCapacity
	probeCapacity = func() (HostCapacity, error) {
		return HostCapacity{CPUCores: 1024, MemoryBytes: 4 << 40, DiskBytes: 4 << 40}, nil
	}
	t.Cleanup(func() { probeCapacity = orig })

	_, err := New(300, 0, 0)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = New(0, 2<<40, 0)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = New(0, 0, 2<<40)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate_RejectsNegativeValues(t *testing.T) {
	stubCapacity(t)

	_, err := New(-1, 0, 0)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = New(0, -5, 0)
	assert.ErrorIs(t, err, ErrInvalid)

	l := ResourceLimits{PidsLimit: -2, MemorySwap: Unlimited, CPUShares: DefaultCPUShares}
	assert.ErrorIs(t, l.Validate(), ErrInvalid)
}

func TestValidate_SwapBelowMemory(t *testing.T) {
	stubCapacity(t)

	l := ResourceLimits{
		MemoryLimit: 2 << 30,
		MemorySwap:  1 << 30,
		CPUShares:   DefaultCPUShares,
		PidsLimit:   Unlimited,
	}
	assert.ErrorIs(t, l.Validate(), ErrInvalid)
}

func TestFromHumanReadable_BinaryMultiples(t *testing.T) {
	stubCapacity(t)

	l, err := FromHumanReadable("1.5", "512M", "1G")
	require.NoError(t, err)
	assert.Equal(t, 1.5, l.CPULimit)
	assert.Equal(t, int64(512*1024*1024), l.MemoryLimit)
	assert.Equal(t, int64(1024*1024*1024), l.DiskLimit)
}

func TestFromHumanReadable_Suffixes(t *testing.T) {
	stubCapacity(t)

	tests := []struct {
		in   string
		want int64
	}{
		{"1024B", 1024},
		{"64K", 64 * 1024},
		{"64KB", 64 * 1024},
		{"8MB", 8 << 20},
		{"2GB", 2 << 30},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			l, err := FromHumanReadable("", tt.in, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.MemoryLimit)
		})
	}
}

func TestFromHumanReadable_Malformed(t *testing.T) {
	stubCapacity(t)

	_, err := FromHumanReadable("two", "", "")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = FromHumanReadable("", "12X", "")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = FromHumanReadable("", "", "lots")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEngineResources_NanoCPUs(t *testing.T) {
	stubCapacity(t)

	l, err := New(1.5, 0, 0)
	require.NoError(t, err)

	res := l.EngineResources()
	assert.Equal(t, int64(1_500_000_000), res.NanoCPUs)
}

func TestEngineResources_OmitsDefaults(t *testing.T) {
	l := ResourceLimits{
		CPUShares: DefaultCPUShares,
		PidsLimit: Unlimited,
	}

	res := l.EngineResources()
	assert.Zero(t, res.CPUShares)
	assert.Nil(t, res.PidsLimit)
	assert.Zero(t, res.Memory)
}

func TestEngineResources_SetValues(t *testing.T) {
	l := ResourceLimits{
		MemoryLimit: 1 << 30,
		MemorySwap:  2 << 30,
		CPUShares:   512,
		PidsLimit:   100,
	}

	res := l.EngineResources()
	assert.Equal(t, int64(1<<30), res.Memory)
	assert.Equal(t, int64(2<<30), res.MemorySwap)
	assert.Equal(t, int64(512), res.CPUShares)
	require.NotNil(t, res.PidsLimit)
	assert.Equal(t, int64(100), *res.PidsLimit)
}
