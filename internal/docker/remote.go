package docker

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/tlsconfig"
)

// DefaultRemotePort is the conventional port for a TLS-secured
// engine API.
const DefaultRemotePort = 2376

// TLSConfig points at the three pre-generated PEM files securing a
// remote engine endpoint. Certificate generation is environment
// setup, not this layer's job; the files only have to exist.
type TLSConfig struct {
	ClientCertPath string `yaml:"client_cert" mapstructure:"client_cert"`
	ClientKeyPath  string `yaml:"client_key" mapstructure:"client_key"`
	CACertPath     string `yaml:"ca_cert" mapstructure:"ca_cert"`
	Verify         bool   `yaml:"verify" mapstructure:"verify"`
}

// validateFiles checks that all three certificate files exist.
func (t *TLSConfig) validateFiles() error {
	for _, path := range []string{t.ClientCertPath, t.ClientKeyPath, t.CACertPath} {
		if path == "" {
			return fmt.Errorf("tls config is missing a certificate path")
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("certificate file %s: %w", path, err)
		}
	}
	return nil
}

// RemoteHost describes one remote engine endpoint reached over TCP.
type RemoteHost struct {
	Name string     `yaml:"name" mapstructure:"name"`
	Host string     `yaml:"host" mapstructure:"host"`
	Port int        `yaml:"port" mapstructure:"port"`
	TLS  *TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// dialRemote builds a client for a remote host. A package variable so
// tests can substitute a fake dialer.
var dialRemote = func(h RemoteHost) (apiClient, error) {
	port := h.Port
	if port == 0 {
		port = DefaultRemotePort
	}
	opts := []client.Opt{
		client.WithHost(fmt.Sprintf("tcp://%s:%d", h.Host, port)),
		client.WithAPIVersionNegotiation(),
	}

	if h.TLS != nil {
		if h.TLS.Verify {
			opts = append(opts, client.WithTLSClientConfig(h.TLS.CACertPath, h.TLS.ClientCertPath, h.TLS.ClientKeyPath))
		} else {
			tlsc, err := tlsconfig.Client(tlsconfig.Options{
				CAFile:             h.TLS.CACertPath,
				CertFile:           h.TLS.ClientCertPath,
				KeyFile:            h.TLS.ClientKeyPath,
				InsecureSkipVerify: true,
			})
			if err != nil {
				return nil, fmt.Errorf("build tls config: %w", err)
			}
			httpClient := &http.Client{
				Transport: &http.Transport{TLSClientConfig: tlsc},
			}
			opts = append(opts, client.WithHTTPClient(httpClient))
		}
	}

	return client.NewClientWithOpts(opts...)
}

// RemotePool maintains one connected manager per named remote host.
type RemotePool struct {
	mu      sync.RWMutex
	members map[string]*Manager
}

// NewRemotePool returns an empty pool.
func NewRemotePool() *RemotePool {
	return &RemotePool{members: make(map[string]*Manager)}
}

// AddHost validates the certificate files, dials the endpoint and
// pings it before registering. It reports success; all failures are
// logged and yield false rather than an error, leaving severity to
// the caller. Registering an existing name replaces the old client.
func (p *RemotePool) AddHost(h RemoteHost) bool {
	if h.Name == "" || h.Host == "" {
		log.Error("remote host needs a name and an address")
		return false
	}

	if h.TLS != nil {
		if err := h.TLS.validateFiles(); err != nil {
			log.Error("remote host rejected", "host", h.Name, "error", err)
			return false
		}
	}

	api, err := dialRemote(h)
	if err != nil {
		log.Error("cannot build client for remote host", "host", h.Name, "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := api.Ping(ctx); err != nil {
		log.Error("remote host unreachable", "host", h.Name, "error", err)
		api.Close()
		return false
	}

	p.mu.Lock()
	if old, ok := p.members[h.Name]; ok {
		old.Close()
	}
	p.members[h.Name] = newManagerWithClient(api)
	p.mu.Unlock()

	log.Info("remote host registered", "host", h.Name, "address", h.Host)
	return true
}

// RemoveHost deregisters a host and closes its client.
func (p *RemotePool) RemoveHost(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.members[name]
	if !ok {
		return false
	}
	m.Close()
	delete(p.members, name)
	return true
}

// Get returns the manager for a named host.
func (p *RemotePool) Get(name string) (*Manager, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.members[name]
	return m, ok
}

// Hosts lists registered host names.
func (p *RemotePool) Hosts() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.members))
	for name := range p.members {
		names = append(names, name)
	}
	return names
}

// Close disconnects every registered host.
func (p *RemotePool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, m := range p.members {
		m.Close()
		delete(p.members, name)
	}
}
