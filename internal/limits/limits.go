// Package limits validates and translates per-container resource quotas.
package limits

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	units "github.com/docker/go-units"
)

const (
	// DefaultCPUShares is the engine's default relative CPU weight.
	DefaultCPUShares = 1024

	// Unlimited disables a limit that supports the -1 convention
	// (memory swap, pids).
	Unlimited = -1

	// Absolute sanity ceilings, independent of the host.
	MaxCPUCores    = 256
	MaxMemoryBytes = 1 << 40 // 1 TiB
	MaxDiskBytes   = 1 << 40

	// capacityHeadroom is the fraction of live host capacity a single
	// container may claim.
	capacityHeadroom = 0.98
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid resource limit")

// ResourceLimits holds the quotas applied to one container. A zero
// value for CPULimit, MemoryLimit or DiskLimit means "not set".
// DiskLimit is advisory only; the engine does not enforce it.
type ResourceLimits struct {
	CPULimit    float64 // fractional cores
	MemoryLimit int64   // bytes
	MemorySwap  int64   // bytes, Unlimited for no swap cap
	DiskLimit   int64   // bytes, advisory
	CPUShares   int64   // relative weight
	PidsLimit   int64   // Unlimited for no cap
}

// New builds validated limits from raw values. Validation is eager:
// callers get the error before any engine call is made.
func New(cpu float64, memory, disk int64) (*ResourceLimits, error) {
	l := &ResourceLimits{
		CPULimit:    cpu,
		MemoryLimit: memory,
		MemorySwap:  Unlimited,
		DiskLimit:   disk,
		CPUShares:   DefaultCPUShares,
		PidsLimit:   Unlimited,
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// FromHumanReadable parses limits from strings such as cpu="1.5",
// memory="512M", disk="10G". Size suffixes are binary multiples
// (1G = 1024^3 bytes). Empty strings leave the limit unset.
func FromHumanReadable(cpu, memory, disk string) (*ResourceLimits, error) {
	l := &ResourceLimits{
		MemorySwap: Unlimited,
		CPUShares:  DefaultCPUShares,
		PidsLimit:  Unlimited,
	}

	if cpu != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(cpu), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot parse cpu %q", ErrInvalid, cpu)
		}
		l.CPULimit = v
	}
	if memory != "" {
		v, err := units.RAMInBytes(memory)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot parse memory %q", ErrInvalid, memory)
		}
		l.MemoryLimit = v
	}
	if disk != "" {
		v, err := units.RAMInBytes(disk)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot parse disk %q", ErrInvalid, disk)
		}
		l.DiskLimit = v
	}

	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Validate checks every set limit against the absolute ceilings and
// against 98% of the host's live capacity.
func (l *ResourceLimits) Validate() error {
	host, err := probeCapacity()
	if err != nil {
		return fmt.Errorf("cannot determine host capacity: %w", err)
	}

	if l.CPULimit != 0 {
		if l.CPULimit < 0 {
			return fmt.Errorf("%w: cpu limit %.2f must be positive", ErrInvalid, l.CPULimit)
		}
		if l.CPULimit > MaxCPUCores {
			return fmt.Errorf("%w: cpu limit %.2f exceeds ceiling of %d cores", ErrInvalid, l.CPULimit, MaxCPUCores)
		}
		if max := float64(host.CPUCores) * capacityHeadroom; l.CPULimit > max {
			return fmt.Errorf("%w: cpu limit %.2f exceeds %.2f (98%% of %d host cores)", ErrInvalid, l.CPULimit, max, host.CPUCores)
		}
	}

	if l.MemoryLimit != 0 {
		if l.MemoryLimit < 0 {
			return fmt.Errorf("%w: memory limit %d must be positive", ErrInvalid, l.MemoryLimit)
		}
		if l.MemoryLimit > MaxMemoryBytes {
			return fmt.Errorf("%w: memory limit %s exceeds ceiling of %s",
				ErrInvalid, units.BytesSize(float64(l.MemoryLimit)), units.BytesSize(float64(MaxMemoryBytes)))
		}
		if max := int64(float64(host.MemoryBytes) * capacityHeadroom); l.MemoryLimit > max {
			return fmt.Errorf("%w: memory limit %s exceeds 98%% of host memory (%s)",
				ErrInvalid, units.BytesSize(float64(l.MemoryLimit)), units.BytesSize(float64(host.MemoryBytes)))
		}
	}

	if l.MemorySwap != 0 && l.MemorySwap != Unlimited {
		if l.MemorySwap < 0 {
			return fmt.Errorf("%w: memory swap %d must be positive or -1", ErrInvalid, l.MemorySwap)
		}
		if l.MemoryLimit != 0 && l.MemorySwap < l.MemoryLimit {
			return fmt.Errorf("%w: memory swap %d is below memory limit %d", ErrInvalid, l.MemorySwap, l.MemoryLimit)
		}
	}

	if l.DiskLimit != 0 {
		if l.DiskLimit < 0 {
			return fmt.Errorf("%w: disk limit %d must be positive", ErrInvalid, l.DiskLimit)
		}
		if l.DiskLimit > MaxDiskBytes {
			return fmt.Errorf("%w: disk limit %s exceeds ceiling of %s",
				ErrInvalid, units.BytesSize(float64(l.DiskLimit)), units.BytesSize(float64(MaxDiskBytes)))
		}
		if max := int64(float64(host.DiskBytes) * capacityHeadroom); l.DiskLimit > max {
			return fmt.Errorf("%w: disk limit %s exceeds 98%% of root filesystem (%s)",
				ErrInvalid, units.BytesSize(float64(l.DiskLimit)), units.BytesSize(float64(host.DiskBytes)))
		}
	}

	if l.CPUShares < 0 {
		return fmt.Errorf("%w: cpu shares %d must be positive", ErrInvalid, l.CPUShares)
	}
	if l.PidsLimit < Unlimited {
		return fmt.Errorf("%w: pids limit %d must be positive or -1", ErrInvalid, l.PidsLimit)
	}

	return nil
}

// EngineResources translates the limits into engine-native arguments.
// CPU cores become nano-CPU units; CPUShares is omitted while at the
// engine default; PidsLimit is omitted when unlimited. DiskLimit has
// no engine-native representation and is carried by callers only.
func (l *ResourceLimits) EngineResources() container.Resources {
	var res container.Resources

	if l.CPULimit > 0 {
		res.NanoCPUs = int64(l.CPULimit * 1e9)
	}
	if l.MemoryLimit > 0 {
		res.Memory = l.MemoryLimit
		res.MemorySwap = l.MemorySwap
	}
	if l.CPUShares != 0 && l.CPUShares != DefaultCPUShares {
		res.CPUShares = l.CPUShares
	}
	if l.PidsLimit != Unlimited && l.PidsLimit != 0 {
		pids := l.PidsLimit
		res.PidsLimit = &pids
	}

	return res
}

// String renders a short summary for logs.
func (l *ResourceLimits) String() string {
	parts := make([]string, 0, 4)
	if l.CPULimit > 0 {
		parts = append(parts, fmt.Sprintf("cpu=%.2f", l.CPULimit))
	}
	if l.MemoryLimit > 0 {
		parts = append(parts, "mem="+units.BytesSize(float64(l.MemoryLimit)))
	}
	if l.DiskLimit > 0 {
		parts = append(parts, "disk="+units.BytesSize(float64(l.DiskLimit)))
	}
	if l.PidsLimit > 0 {
		parts = append(parts, fmt.Sprintf("pids=%d", l.PidsLimit))
	}
	if len(parts) == 0 {
		return "unlimited"
	}
	return strings.Join(parts, " ")
}
