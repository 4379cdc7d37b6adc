// Package docker is the engine-facing orchestration layer: a local
// container manager, a TLS-authenticated remote host pool, a unified
// routing facade, and a polling resource monitor.
package docker

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/system"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// apiClient is the slice of the engine client this package uses.
// *client.Client satisfies it; tests substitute fakes.
type apiClient interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerPause(ctx context.Context, containerID string) error
	ContainerUnpause(ctx context.Context, containerID string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	ContainerStats(ctx context.Context, containerID string, stream bool) (container.StatsResponseReader, error)
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	Info(ctx context.Context) (system.Info, error)
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

// candidateSockets are probed in order when the environment does not
// point at a working daemon. Covers the Linux default, Docker Desktop
// on macOS, and Colima VMs.
func candidateSockets() []string {
	home := os.Getenv("HOME")
	return []string{
		"unix:///var/run/docker.sock",
		"unix://" + home + "/.docker/run/docker.sock",
		"unix://" + home + "/.colima/docker.sock",
	}
}

// newLocalClient connects to the local daemon. Resolution order:
// explicit socket path, environment (DOCKER_HOST), then the candidate
// socket list. If everything fails and a bootstrap command is
// configured, it is run once and the probe repeated before giving up.
func newLocalClient(socketPath, bootstrapCommand string) (*client.Client, error) {
	cli, err := probeLocalClient(socketPath)
	if err == nil {
		return cli, nil
	}

	if bootstrapCommand != "" {
		log.Warn("no reachable daemon, running bootstrap command", "command", bootstrapCommand)
		if bootErr := runBootstrap(bootstrapCommand); bootErr != nil {
			log.Error("bootstrap command failed", "error", bootErr)
		} else if cli, retryErr := probeLocalClient(socketPath); retryErr == nil {
			return cli, nil
		}
	}

	return nil, wrapErr(KindConnection, "docker.connect", err)
}

func probeLocalClient(socketPath string) (*client.Client, error) {
	if socketPath != "" {
		return dialAndPing(client.WithHost("unix://" + socketPath))
	}

	if cli, err := dialAndPing(client.FromEnv); err == nil {
		return cli, nil
	}

	var lastErr error
	for _, sock := range candidateSockets() {
		cli, err := dialAndPing(client.WithHost(sock))
		if err == nil {
			log.Debug("connected to daemon", "socket", sock)
			return cli, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func dialAndPing(opt client.Opt) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(opt, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, err
	}
	return cli, nil
}

// runBootstrap executes the configured environment bootstrap (for
// developer machines without a native daemon, e.g. "colima start").
// It runs at most once per connection attempt.
func runBootstrap(command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	cmd := exec.Command(fields[0], fields[1:]...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}
