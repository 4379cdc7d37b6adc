package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromYAML(t *testing.T, content string) (*Config, error) {
	t.Helper()

	configFile := filepath.Join(t.TempDir(), "sandboxd.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetConfigFile(configFile)
	require.NoError(t, viper.ReadInConfig())

	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadFromYAML(t, "docker:\n  socket_path: /var/run/docker.sock\n")
	require.NoError(t, err)

	assert.Equal(t, "/var/run/docker.sock", cfg.Docker.SocketPath)
	assert.Equal(t, 8100, cfg.Container.BasePort)
	assert.Equal(t, 8000, cfg.Container.ServicePort)
	assert.Equal(t, "api", cfg.Container.ServicePath)
	assert.Equal(t, "127.0.0.1", cfg.Container.AdvertiseIP)
	assert.Equal(t, "1000:1000", cfg.Container.User)
	assert.Equal(t, 10*time.Second, cfg.ReadinessTimeout())
	assert.False(t, cfg.Dev.Enabled)
}

func TestLoad_FullConfig(t *testing.T) {
	srcDir := t.TempDir()
	content := `
docker:
  socket_path: /custom/docker.sock
  bootstrap_command: "colima start"
container:
  base_port: 9100
  service_port: 9000
  service_path: /v1/api/
  advertise_ip: 192.168.1.10
  user: "0:0"
  cap_drop: ["ALL"]
  cap_add: ["NET_BIND_SERVICE"]
  network_mode: bridge
  readiness_timeout: 30s
dev:
  enabled: true
  source_dir: ` + srcDir + `
`
	cfg, err := loadFromYAML(t, content)
	require.NoError(t, err)

	assert.Equal(t, "colima start", cfg.Docker.BootstrapCommand)
	assert.Equal(t, 9100, cfg.Container.BasePort)
	assert.Equal(t, 9000, cfg.Container.ServicePort)
	assert.Equal(t, []string{"ALL"}, cfg.Container.CapDrop)
	assert.Equal(t, []string{"NET_BIND_SERVICE"}, cfg.Container.CapAdd)
	assert.Equal(t, 30*time.Second, cfg.ReadinessTimeout())
	assert.True(t, cfg.Dev.Enabled)
	assert.Equal(t, srcDir, cfg.Dev.SourceDir)
}

func TestLoad_InvalidPortRange(t *testing.T) {
	_, err := loadFromYAML(t, "container:\n  base_port: 70000\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_port")

	_, err = loadFromYAML(t, "container:\n  service_port: -1\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service_port")
}

func TestLoad_InvalidReadinessTimeout(t *testing.T) {
	_, err := loadFromYAML(t, "container:\n  readiness_timeout: soon\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "readiness_timeout")
}

func TestLoad_DevModeRequiresSourceDir(t *testing.T) {
	_, err := loadFromYAML(t, "dev:\n  enabled: true\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_dir")
}

func TestLoad_DevModeMissingDirectory(t *testing.T) {
	_, err := loadFromYAML(t, "dev:\n  enabled: true\n  source_dir: /does/not/exist\n")
	require.Error(t, err)
}

func TestDefaultEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "containers.env")
	require.NoError(t, os.WriteFile(envFile, []byte("API_KEY=secret\nMODE=sandbox\n"), 0o600))

	cfg, err := loadFromYAML(t, "env:\n  file: "+envFile+"\n")
	require.NoError(t, err)

	env, err := cfg.DefaultEnv()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"API_KEY=secret", "MODE=sandbox"}, env)
}

func TestDefaultEnv_NoFileConfigured(t *testing.T) {
	cfg, err := loadFromYAML(t, "")
	require.NoError(t, err)

	env, err := cfg.DefaultEnv()
	require.NoError(t, err)
	assert.Nil(t, env)
}

func TestDefaultEnv_MissingFile(t *testing.T) {
	cfg, err := loadFromYAML(t, "env:\n  file: /does/not/exist.env\n")
	require.NoError(t, err)

	_, err = cfg.DefaultEnv()
	require.Error(t, err)
}

func TestRemoteHosts(t *testing.T) {
	hostsFile := filepath.Join(t.TempDir(), "hosts.yaml")
	inventory := `
hosts:
  - name: prod
    host: 10.0.0.5
    port: 2376
    tls:
      ca_cert: /certs/ca.pem
      client_cert: /certs/cert.pem
      client_key: /certs/key.pem
      verify: true
  - name: staging
    host: 10.0.0.6
`
	require.NoError(t, os.WriteFile(hostsFile, []byte(inventory), 0o644))

	cfg, err := loadFromYAML(t, "hosts:\n  file: "+hostsFile+"\n")
	require.NoError(t, err)

	hosts, err := cfg.RemoteHosts()
	require.NoError(t, err)
	require.Len(t, hosts, 2)

	assert.Equal(t, "prod", hosts[0].Name)
	assert.Equal(t, 2376, hosts[0].Port)
	require.NotNil(t, hosts[0].TLS)
	assert.True(t, hosts[0].TLS.Verify)
	assert.Equal(t, "/certs/ca.pem", hosts[0].TLS.CACertPath)

	assert.Equal(t, "staging", hosts[1].Name)
	assert.Nil(t, hosts[1].TLS)
}

func TestRemoteHosts_RejectsIncompleteEntry(t *testing.T) {
	hostsFile := filepath.Join(t.TempDir(), "hosts.yaml")
	require.NoError(t, os.WriteFile(hostsFile, []byte("hosts:\n  - name: prod\n"), 0o644))

	cfg, err := loadFromYAML(t, "hosts:\n  file: "+hostsFile+"\n")
	require.NoError(t, err)

	_, err = cfg.RemoteHosts()
	require.Error(t, err)
}

func TestManagerOptions(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "containers.env")
	require.NoError(t, os.WriteFile(envFile, []byte("MODE=sandbox\n"), 0o600))

	cfg, err := loadFromYAML(t, "container:\n  base_port: 9100\nenv:\n  file: "+envFile+"\n")
	require.NoError(t, err)

	opts, err := cfg.ManagerOptions()
	require.NoError(t, err)
	assert.Equal(t, 9100, opts.BasePort)
	assert.Equal(t, 8000, opts.ServicePort)
	assert.Equal(t, 10*time.Second, opts.ReadinessTimeout)
	assert.Equal(t, []string{"MODE=sandbox"}, opts.DefaultEnv)
}
