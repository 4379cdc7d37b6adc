package docker

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// ExecConfig tunes one in-container command execution.
type ExecConfig struct {
	Timeout    time.Duration // 0 means no deadline
	Privileged bool
	User       string
	WorkingDir string
}

// ExecResult is the outcome of a command run inside a container.
// Stdout and stderr are demuxed from the engine's multiplexed attach
// stream, so unlike raw exec APIs that merge the two, stderr here is
// genuinely the command's stderr.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExecuteCommand runs cmd inside a running container. The container's
// status is reloaded immediately before the exec; anything other than
// running fails with a state error and the exec API is never called.
func (m *Manager) ExecuteCommand(ctx context.Context, containerID string, cmd []string, cfg ExecConfig) (*ExecResult, error) {
	const op = "docker.exec"

	if len(cmd) == 0 {
		return nil, newErr(KindExecution, op, "command is empty")
	}

	inspect, err := m.api.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, wrapErr(execKind(err), op, err)
	}
	if inspect.State == nil || inspect.State.Status != StatusRunning {
		status := "unknown"
		if inspect.State != nil {
			status = inspect.State.Status
		}
		return nil, newErr(KindState, op, "container %s is %s, exec requires running", shortID(containerID), status)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	execResp, err := m.api.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
		Privileged:   cfg.Privileged,
		User:         cfg.User,
		WorkingDir:   cfg.WorkingDir,
	})
	if err != nil {
		return nil, wrapErr(KindExecution, op, err)
	}

	attach, err := m.api.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, wrapErr(KindExecution, op, err)
	}
	defer attach.Close()

	var stdout, stderr strings.Builder
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil {
		return nil, wrapErr(KindExecution, op, err)
	}

	state, err := m.api.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, wrapErr(KindExecution, op, err)
	}

	log.Debug("command executed",
		"container_id", shortID(containerID),
		"exit_code", state.ExitCode,
		"command", strings.Join(cmd, " "))

	return &ExecResult{
		ExitCode: state.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}
