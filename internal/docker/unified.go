package docker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// LocalHostName is the registry key the local daemon is registered
// under.
const LocalHostName = "local"

// maxPortRetries caps the port-conflict retry loop.
const maxPortRetries = 200

// Backend is the operation set shared by the local manager and every
// remote host client. Routing happens purely by host name; results
// carry the same types either way.
type Backend interface {
	CreateContainer(ctx context.Context, opts CreateOptions) (*ContainerInfo, error)
	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string, force bool, timeout int) error
	RestartContainer(ctx context.Context, containerID string, timeout int) error
	PauseContainer(ctx context.Context, containerID string) error
	UnpauseContainer(ctx context.Context, containerID string) error
	RemoveContainer(ctx context.Context, containerID string, force, volumes bool) error
	ExecuteCommand(ctx context.Context, containerID string, cmd []string, cfg ExecConfig) (*ExecResult, error)
	ListContainers(ctx context.Context, all bool) ([]*ContainerInfo, error)
	GetContainerInfo(ctx context.Context, containerID string) (*ContainerInfo, error)
	GetContainerLogs(ctx context.Context, containerID string, tail int) (string, error)
	MonitorResources(ctx context.Context, containerID string, duration, interval time.Duration) (*ResourceMetrics, error)
	HostInfo(ctx context.Context) (*HostInfo, error)
	Ping(ctx context.Context) error
}

// HostConfig is one entry in the routing registry.
type HostConfig struct {
	HostName string      `json:"host_name"`
	IsLocal  bool        `json:"is_local"`
	Remote   *RemoteHost `json:"remote,omitempty"`
}

// Options configures the unified manager.
type Options struct {
	SocketPath       string        // local daemon socket, empty for auto-detection
	BootstrapCommand string        // optional one-shot environment bootstrap
	BasePort         int           // first candidate published port
	ServicePort      int           // fixed in-container service port
	ServicePath      string        // path component of the returned service URL
	AdvertiseIP      string        // externally visible IP for service URLs
	User             string        // uid:gid applied to created containers
	CapAdd           []string      // capabilities granted to every container
	CapDrop          []string      // capabilities removed from every container
	NetworkMode      string        // default network mode
	ReadinessTimeout time.Duration // bound on the post-start readiness poll
	DevMode          bool          // inject development volume mounts
	DevSourceDir     string        // host source tree, mounted read-write
	DevKnowledgeDir  string        // knowledge base, mounted read-only
	DefaultEnv       []string      // environment appended to every container
}

func (o *Options) withDefaults() {
	if o.BasePort == 0 {
		o.BasePort = 8100
	}
	if o.ServicePort == 0 {
		o.ServicePort = 8000
	}
	if o.ServicePath == "" {
		o.ServicePath = "api"
	}
	if o.AdvertiseIP == "" {
		o.AdvertiseIP = "127.0.0.1"
	}
	if o.ReadinessTimeout == 0 {
		o.ReadinessTimeout = 10 * time.Second
	}
}

type hostEntry struct {
	HostConfig
	backend Backend
}

// UnifiedManager routes every operation to the right engine backend:
// the local daemon or a named TLS remote. It owns the only mutable
// shared state in this package, the host registry, and guards it with
// a mutex so concurrent registration is safe.
type UnifiedManager struct {
	opts Options
	pool *RemotePool

	mu    sync.RWMutex
	hosts map[string]*hostEntry

	// nextPort is the candidate published-port cursor. It only moves
	// forward; ports are never recycled after container removal.
	portMu   sync.Mutex
	nextPort int
}

// NewUnifiedManager connects to the local daemon and pre-registers it
// under LocalHostName.
func NewUnifiedManager(opts Options) (*UnifiedManager, error) {
	local, err := NewManager(opts.SocketPath, opts.BootstrapCommand)
	if err != nil {
		return nil, err
	}
	return newUnifiedManager(local, opts), nil
}

func newUnifiedManager(local Backend, opts Options) *UnifiedManager {
	opts.withDefaults()
	u := &UnifiedManager{
		opts:     opts,
		pool:     NewRemotePool(),
		hosts:    make(map[string]*hostEntry),
		nextPort: opts.BasePort,
	}
	u.hosts[LocalHostName] = &hostEntry{
		HostConfig: HostConfig{HostName: LocalHostName, IsLocal: true},
		backend:    local,
	}
	return u
}

// AddRemoteHost registers a remote engine endpoint. Mirrors the
// pool's contract: failures are logged and reported as false.
func (u *UnifiedManager) AddRemoteHost(h RemoteHost) bool {
	if h.Name == LocalHostName {
		log.Error("host name is reserved", "host", h.Name)
		return false
	}
	if !u.pool.AddHost(h) {
		return false
	}
	backend, ok := u.pool.Get(h.Name)
	if !ok {
		// A concurrent RemoveRemoteHost won the race; the host is gone.
		log.Warn("remote host removed during registration", "host", h.Name)
		return false
	}

	u.mu.Lock()
	u.hosts[h.Name] = &hostEntry{
		HostConfig: HostConfig{HostName: h.Name, Remote: &h},
		backend:    backend,
	}
	u.mu.Unlock()
	return true
}

// RemoveRemoteHost deregisters a remote host. The local host cannot
// be removed.
func (u *UnifiedManager) RemoveRemoteHost(name string) bool {
	if name == LocalHostName {
		return false
	}

	u.mu.Lock()
	_, ok := u.hosts[name]
	delete(u.hosts, name)
	u.mu.Unlock()

	if ok {
		u.pool.RemoveHost(name)
	}
	return ok
}

// ListHosts returns the registered host configurations.
func (u *UnifiedManager) ListHosts() []HostConfig {
	u.mu.RLock()
	defer u.mu.RUnlock()

	configs := make([]HostConfig, 0, len(u.hosts))
	for _, entry := range u.hosts {
		configs = append(configs, entry.HostConfig)
	}
	return configs
}

// resolve returns the backend for a host name; empty selects local.
func (u *UnifiedManager) resolve(hostName string) (*hostEntry, error) {
	if hostName == "" {
		hostName = LocalHostName
	}
	u.mu.RLock()
	entry, ok := u.hosts[hostName]
	u.mu.RUnlock()
	if !ok {
		return nil, newErr(KindNotFound, "docker.route", "host %q is not registered", hostName)
	}
	return entry, nil
}

// CreateContainer creates and starts a sandbox on the named host and
// returns its connection descriptor. The published port starts at the
// current cursor and is incremented while the engine reports it
// taken, up to maxPortRetries attempts; any other creation error
// propagates on the first attempt. After a successful start the
// container is polled until it reports running (and, locally, until
// its published port accepts connections), bounded by
// ReadinessTimeout.
func (u *UnifiedManager) CreateContainer(ctx context.Context, opts CreateOptions, hostName string) (*ContainerHandle, error) {
	const op = "docker.create"

	entry, err := u.resolve(hostName)
	if err != nil {
		return nil, err
	}

	u.applyDefaults(&opts)
	if u.opts.DevMode {
		opts.Binds = append(opts.Binds, u.devBinds()...)
	}

	port := u.takeBasePort()
	var info *ContainerInfo
	for attempt := 0; ; attempt++ {
		attemptOpts := opts
		attemptOpts.Ports = append([]PortMapping{{
			HostPort:      port,
			ContainerPort: u.opts.ServicePort,
		}}, opts.Ports...)

		info, err = entry.backend.CreateContainer(ctx, attemptOpts)
		if err == nil {
			break
		}
		if !isPortConflict(err) {
			return nil, wrapErr(KindCreation, op, err)
		}
		if attempt+1 >= maxPortRetries {
			return nil, wrapErr(KindCreation, op,
				fmt.Errorf("no free port after %d attempts starting at %d: %w", maxPortRetries, u.opts.BasePort, err))
		}
		port = u.advancePort(port)
		log.Debug("published port taken, retrying", "host", entry.HostName, "next_port", port)
	}

	u.consumePort(port)

	if err := u.waitReady(ctx, entry, info.ID, port); err != nil {
		log.Warn("container not confirmed ready before timeout",
			"id", info.ShortID, "host", entry.HostName, "error", err)
	}

	return &ContainerHandle{
		ContainerID:   info.ID,
		ShortID:       info.ShortID,
		ContainerName: info.Name,
		HostName:      entry.HostName,
		IsLocal:       entry.IsLocal,
		ServiceURL:    u.serviceURL(port),
		ServicePort:   port,
	}, nil
}

// ExecuteCommand runs a command in a container on the named host.
func (u *UnifiedManager) ExecuteCommand(ctx context.Context, containerID string, cmd []string, cfg ExecConfig, hostName string) (*ExecResult, error) {
	entry, err := u.resolve(hostName)
	if err != nil {
		return nil, err
	}
	return entry.backend.ExecuteCommand(ctx, containerID, cmd, cfg)
}

// StartContainer starts a stopped container on the named host.
func (u *UnifiedManager) StartContainer(ctx context.Context, containerID, hostName string) error {
	entry, err := u.resolve(hostName)
	if err != nil {
		return err
	}
	return entry.backend.StartContainer(ctx, containerID)
}

// StopContainer stops a container on the named host.
func (u *UnifiedManager) StopContainer(ctx context.Context, containerID string, force bool, timeout int, hostName string) error {
	entry, err := u.resolve(hostName)
	if err != nil {
		return err
	}
	return entry.backend.StopContainer(ctx, containerID, force, timeout)
}

// RestartContainer restarts a container on the named host.
func (u *UnifiedManager) RestartContainer(ctx context.Context, containerID string, timeout int, hostName string) error {
	entry, err := u.resolve(hostName)
	if err != nil {
		return err
	}
	return entry.backend.RestartContainer(ctx, containerID, timeout)
}

// PauseContainer freezes a running container on the named host.
func (u *UnifiedManager) PauseContainer(ctx context.Context, containerID, hostName string) error {
	entry, err := u.resolve(hostName)
	if err != nil {
		return err
	}
	return entry.backend.PauseContainer(ctx, containerID)
}

// UnpauseContainer thaws a paused container on the named host.
func (u *UnifiedManager) UnpauseContainer(ctx context.Context, containerID, hostName string) error {
	entry, err := u.resolve(hostName)
	if err != nil {
		return err
	}
	return entry.backend.UnpauseContainer(ctx, containerID)
}

// RemoveContainer removes a container on the named host.
func (u *UnifiedManager) RemoveContainer(ctx context.Context, containerID string, force, volumes bool, hostName string) error {
	entry, err := u.resolve(hostName)
	if err != nil {
		return err
	}
	return entry.backend.RemoveContainer(ctx, containerID, force, volumes)
}

// ListContainers lists containers on the named host.
func (u *UnifiedManager) ListContainers(ctx context.Context, all bool, hostName string) ([]*ContainerInfo, error) {
	entry, err := u.resolve(hostName)
	if err != nil {
		return nil, err
	}
	return entry.backend.ListContainers(ctx, all)
}

// GetContainerInfo snapshots a container on the named host.
func (u *UnifiedManager) GetContainerInfo(ctx context.Context, containerID, hostName string) (*ContainerInfo, error) {
	entry, err := u.resolve(hostName)
	if err != nil {
		return nil, err
	}
	return entry.backend.GetContainerInfo(ctx, containerID)
}

// GetContainerLogs fetches logs from the named host.
func (u *UnifiedManager) GetContainerLogs(ctx context.Context, containerID string, tail int, hostName string) (string, error) {
	entry, err := u.resolve(hostName)
	if err != nil {
		return "", err
	}
	return entry.backend.GetContainerLogs(ctx, containerID, tail)
}

// MonitorResources samples a container's stats on the named host.
func (u *UnifiedManager) MonitorResources(ctx context.Context, containerID string, duration, interval time.Duration, hostName string) (*ResourceMetrics, error) {
	entry, err := u.resolve(hostName)
	if err != nil {
		return nil, err
	}
	return entry.backend.MonitorResources(ctx, containerID, duration, interval)
}

// GetHostInfo reports engine identity and capacity for a host.
func (u *UnifiedManager) GetHostInfo(ctx context.Context, hostName string) (*HostInfo, error) {
	entry, err := u.resolve(hostName)
	if err != nil {
		return nil, err
	}
	return entry.backend.HostInfo(ctx)
}

// Ping checks reachability of a host.
func (u *UnifiedManager) Ping(ctx context.Context, hostName string) error {
	entry, err := u.resolve(hostName)
	if err != nil {
		return err
	}
	return entry.backend.Ping(ctx)
}

// Close disconnects every backend.
func (u *UnifiedManager) Close() {
	u.pool.Close()

	u.mu.Lock()
	defer u.mu.Unlock()
	if local, ok := u.hosts[LocalHostName]; ok {
		if closer, ok := local.backend.(interface{ Close() error }); ok {
			closer.Close()
		}
	}
}

func (u *UnifiedManager) applyDefaults(opts *CreateOptions) {
	if opts.User == "" {
		opts.User = u.opts.User
	}
	if opts.NetworkMode == "" {
		opts.NetworkMode = u.opts.NetworkMode
	}
	opts.CapAdd = append(opts.CapAdd, u.opts.CapAdd...)
	opts.CapDrop = append(opts.CapDrop, u.opts.CapDrop...)
	opts.Env = append(append([]string{}, u.opts.DefaultEnv...), opts.Env...)
}

// devBinds are the development-mode mounts: the source tree
// read-write, the knowledge base read-only.
func (u *UnifiedManager) devBinds() []string {
	var binds []string
	if u.opts.DevSourceDir != "" {
		binds = append(binds, u.opts.DevSourceDir+":/app")
	}
	if u.opts.DevKnowledgeDir != "" {
		binds = append(binds, u.opts.DevKnowledgeDir+":/knowledge:ro")
	}
	return binds
}

func (u *UnifiedManager) serviceURL(port int) string {
	return fmt.Sprintf("http://%s:%d/%s", u.opts.AdvertiseIP, port, strings.Trim(u.opts.ServicePath, "/"))
}

func (u *UnifiedManager) takeBasePort() int {
	u.portMu.Lock()
	defer u.portMu.Unlock()
	return u.nextPort
}

func (u *UnifiedManager) advancePort(current int) int {
	return current + 1
}

// consumePort moves the cursor past a successfully bound port.
func (u *UnifiedManager) consumePort(port int) {
	u.portMu.Lock()
	defer u.portMu.Unlock()
	if port >= u.nextPort {
		u.nextPort = port + 1
	}
}
