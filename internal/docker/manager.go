package docker

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"

	"github.com/atomxw/sandboxd/internal/limits"
)

const containerNamePrefix = "sandbox-"

// PortMapping publishes one container port on the host.
type PortMapping struct {
	HostPort      int
	ContainerPort int
	Protocol      string // defaults to tcp
}

// CreateOptions describes one container-creation request.
type CreateOptions struct {
	Image       string
	Command     []string
	Name        string // generated when empty
	Limits      *limits.ResourceLimits
	Env         []string
	Binds       []string // host:container[:mode] bind mounts
	Ports       []PortMapping
	NetworkMode string
	AutoRemove  bool
	User        string // uid:gid applied to the container process
	CapAdd      []string
	CapDrop     []string
	WorkingDir  string
	Labels      map[string]string
}

// Manager drives container lifecycle against a single engine
// endpoint. Every method blocks for the duration of the underlying
// API call.
type Manager struct {
	api     apiClient
	monitor *Monitor
}

// NewManager connects to the local daemon, falling back through the
// candidate sockets and the optional bootstrap command.
func NewManager(socketPath, bootstrapCommand string) (*Manager, error) {
	cli, err := newLocalClient(socketPath, bootstrapCommand)
	if err != nil {
		return nil, err
	}
	return newManagerWithClient(cli), nil
}

func newManagerWithClient(api apiClient) *Manager {
	return &Manager{api: api, monitor: NewMonitor(api)}
}

// CreateContainer pulls the image if absent, applies resource limits,
// creates the container and starts it. If the start fails, the
// just-created container is removed best-effort before the original
// error is returned, so no half-started container leaks.
func (m *Manager) CreateContainer(ctx context.Context, opts CreateOptions) (*ContainerInfo, error) {
	const op = "docker.create"

	if opts.Image == "" {
		return nil, newErr(KindCreation, op, "image is required")
	}

	// Quota validation happens before any engine call, so limits
	// built as literals fail here too, not mid-create.
	if opts.Limits != nil {
		if err := opts.Limits.Validate(); err != nil {
			return nil, wrapErr(KindResourceLimit, op, err)
		}
	}

	name := opts.Name
	if name == "" {
		name = containerNamePrefix + uuid.NewString()[:8]
	}

	if err := m.ensureImage(ctx, opts.Image); err != nil {
		return nil, wrapErr(KindCreation, op, err)
	}

	hostConfig := &container.HostConfig{
		Binds:       opts.Binds,
		AutoRemove:  opts.AutoRemove,
		NetworkMode: container.NetworkMode(opts.NetworkMode),
		CapAdd:      opts.CapAdd,
		CapDrop:     opts.CapDrop,
	}
	if opts.Limits != nil {
		hostConfig.Resources = opts.Limits.EngineResources()
	}

	exposedPorts, portBindings := buildPortMaps(opts.Ports)
	hostConfig.PortBindings = portBindings

	config := &container.Config{
		Image:        opts.Image,
		Cmd:          opts.Command,
		Env:          opts.Env,
		ExposedPorts: exposedPorts,
		WorkingDir:   opts.WorkingDir,
		User:         opts.User,
		Labels:       opts.Labels,
	}

	resp, err := m.api.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err != nil {
		return nil, wrapErr(KindCreation, op, err)
	}
	log.Info("container created", "id", shortID(resp.ID), "name", name, "image", opts.Image)

	if err := m.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Cleanup must never mask the start error.
		if rmErr := m.api.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); rmErr != nil {
			log.Warn("cleanup of failed container failed", "id", shortID(resp.ID), "error", rmErr)
		}
		return nil, wrapErr(KindCreation, op, fmt.Errorf("start container %s: %w", shortID(resp.ID), err))
	}
	log.Info("container started", "id", shortID(resp.ID))

	return m.GetContainerInfo(ctx, resp.ID)
}

// StartContainer starts a stopped container.
func (m *Manager) StartContainer(ctx context.Context, containerID string) error {
	const op = "docker.start"
	if err := m.api.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return wrapErr(execKind(err), op, err)
	}
	return nil
}

// StopContainer stops a container. With force it sends SIGKILL with
// no grace period; otherwise the engine gets timeout seconds to stop
// the container before killing it.
func (m *Manager) StopContainer(ctx context.Context, containerID string, force bool, timeout int) error {
	const op = "docker.stop"

	if force {
		if err := m.api.ContainerKill(ctx, containerID, "SIGKILL"); err != nil {
			return wrapErr(execKind(err), op, err)
		}
		log.Info("container killed", "id", shortID(containerID))
		return nil
	}

	if timeout <= 0 {
		timeout = 10
	}
	if err := m.api.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return wrapErr(execKind(err), op, err)
	}
	log.Info("container stopped", "id", shortID(containerID))
	return nil
}

// RestartContainer restarts a container with the given grace period.
func (m *Manager) RestartContainer(ctx context.Context, containerID string, timeout int) error {
	const op = "docker.restart"
	if timeout <= 0 {
		timeout = 10
	}
	if err := m.api.ContainerRestart(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return wrapErr(execKind(err), op, err)
	}
	return nil
}

// PauseContainer freezes all processes in a running container.
func (m *Manager) PauseContainer(ctx context.Context, containerID string) error {
	if err := m.api.ContainerPause(ctx, containerID); err != nil {
		return wrapErr(execKind(err), "docker.pause", err)
	}
	return nil
}

// UnpauseContainer thaws a paused container.
func (m *Manager) UnpauseContainer(ctx context.Context, containerID string) error {
	if err := m.api.ContainerUnpause(ctx, containerID); err != nil {
		return wrapErr(execKind(err), "docker.unpause", err)
	}
	return nil
}

// RemoveContainer removes a container, optionally cascading to its
// anonymous volumes.
func (m *Manager) RemoveContainer(ctx context.Context, containerID string, force, volumes bool) error {
	const op = "docker.remove"
	err := m.api.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         force,
		RemoveVolumes: volumes,
	})
	if err != nil {
		return wrapErr(execKind(err), op, err)
	}
	log.Info("container removed", "id", shortID(containerID))
	return nil
}

// GetContainerInfo returns a point-in-time snapshot of the container.
func (m *Manager) GetContainerInfo(ctx context.Context, containerID string) (*ContainerInfo, error) {
	resp, err := m.api.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, wrapErr(execKind(err), "docker.inspect", err)
	}
	return infoFromInspect(resp), nil
}

// ListContainers lists containers, all states when all is true.
func (m *Manager) ListContainers(ctx context.Context, all bool) ([]*ContainerInfo, error) {
	summaries, err := m.api.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, wrapErr(KindExecution, "docker.list", err)
	}
	infos := make([]*ContainerInfo, 0, len(summaries))
	for _, c := range summaries {
		infos = append(infos, infoFromSummary(c))
	}
	return infos, nil
}

// GetContainerLogs returns up to tail lines of demuxed container
// output; tail <= 0 returns everything.
func (m *Manager) GetContainerLogs(ctx context.Context, containerID string, tail int) (string, error) {
	const op = "docker.logs"

	logOpts := container.LogsOptions{ShowStdout: true, ShowStderr: true}
	if tail > 0 {
		logOpts.Tail = fmt.Sprintf("%d", tail)
	}

	reader, err := m.api.ContainerLogs(ctx, containerID, logOpts)
	if err != nil {
		return "", wrapErr(execKind(err), op, err)
	}
	defer reader.Close()

	var output strings.Builder
	if _, err := stdcopy.StdCopy(&output, &output, reader); err != nil && err != io.EOF {
		return "", wrapErr(KindExecution, op, err)
	}
	return output.String(), nil
}

// MonitorResources samples the container's stats over the window.
func (m *Manager) MonitorResources(ctx context.Context, containerID string, duration, interval time.Duration) (*ResourceMetrics, error) {
	return m.monitor.Collect(ctx, containerID, duration, interval)
}

// HostInfo reports the engine endpoint's identity and capacity.
func (m *Manager) HostInfo(ctx context.Context) (*HostInfo, error) {
	info, err := m.api.Info(ctx)
	if err != nil {
		return nil, wrapErr(KindConnection, "docker.info", err)
	}
	return hostInfoFromSystem(info), nil
}

// Ping checks daemon reachability.
func (m *Manager) Ping(ctx context.Context) error {
	if _, err := m.api.Ping(ctx); err != nil {
		return wrapErr(KindConnection, "docker.ping", err)
	}
	return nil
}

// Close releases the underlying client.
func (m *Manager) Close() error {
	return m.api.Close()
}

// ensureImage pulls the image only when it is not present locally.
func (m *Manager) ensureImage(ctx context.Context, ref string) error {
	if _, err := m.api.ImageInspect(ctx, ref); err == nil {
		return nil
	}

	log.Info("pulling image", "image", ref)
	reader, err := m.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer reader.Close()

	// The pull only completes once the response stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("read pull response for %s: %w", ref, err)
	}
	return nil
}

// execKind maps an engine error to NotFound or Execution.
func execKind(err error) ErrorKind {
	if client.IsErrNotFound(err) {
		return KindNotFound
	}
	return KindExecution
}

func buildPortMaps(mappings []PortMapping) (nat.PortSet, nat.PortMap) {
	if len(mappings) == 0 {
		return nil, nil
	}

	exposed := make(nat.PortSet, len(mappings))
	bindings := make(nat.PortMap, len(mappings))
	for _, pm := range mappings {
		proto := pm.Protocol
		if proto == "" {
			proto = "tcp"
		}
		port := nat.Port(fmt.Sprintf("%d/%s", pm.ContainerPort, proto))
		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{
			HostIP:   "0.0.0.0",
			HostPort: fmt.Sprintf("%d", pm.HostPort),
		}}
	}
	return exposed, bindings
}
