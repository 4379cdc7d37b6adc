package docker

import (
	"context"
	"fmt"
	"net"
	"time"
)

// readiness poll tuning. The backoff doubles up to pollMaxDelay; the
// overall bound comes from Options.ReadinessTimeout.
const (
	pollInitialDelay = 100 * time.Millisecond
	pollMaxDelay     = time.Second
	dialTimeout      = 500 * time.Millisecond
)

// dialPort is swapped in tests to avoid real TCP dials.
var dialPort = func(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}

// waitReady polls until the container reports running and, for the
// local host, until its published port accepts a TCP connection. It
// replaces a fixed post-start sleep: the bound is configurable and
// the poll returns as soon as the container is actually usable.
func (u *UnifiedManager) waitReady(ctx context.Context, entry *hostEntry, containerID string, port int) error {
	deadline := time.Now().Add(u.opts.ReadinessTimeout)
	delay := pollInitialDelay

	var lastErr error
	for time.Now().Before(deadline) {
		info, err := entry.backend.GetContainerInfo(ctx, containerID)
		switch {
		case err != nil:
			lastErr = err
		case info.Status == StatusRunning:
			if !entry.IsLocal {
				return nil
			}
			addr := fmt.Sprintf("%s:%d", u.opts.AdvertiseIP, port)
			dialErr := dialPort(addr)
			if dialErr == nil {
				return nil
			}
			lastErr = dialErr
		case info.Status == StatusExited || info.Status == StatusDead:
			return newErr(KindState, "docker.ready", "container %s %s during startup", shortID(containerID), info.Status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > pollMaxDelay {
			delay = pollMaxDelay
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("not running after %s", u.opts.ReadinessTimeout)
	}
	return fmt.Errorf("readiness wait for %s: %w", shortID(containerID), lastErr)
}
