package config

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/atomxw/sandboxd/internal/docker"
)

// Config is the full sandboxd configuration tree.
type Config struct {
	Docker    DockerConfig    `mapstructure:"docker"`
	Container ContainerConfig `mapstructure:"container"`
	Dev       DevConfig       `mapstructure:"dev"`
	Env       EnvConfig       `mapstructure:"env"`
	Hosts     HostsConfig     `mapstructure:"hosts"`
}

type DockerConfig struct {
	SocketPath       string `mapstructure:"socket_path"`
	BootstrapCommand string `mapstructure:"bootstrap_command"`
}

type ContainerConfig struct {
	BasePort         int      `mapstructure:"base_port"`
	ServicePort      int      `mapstructure:"service_port"`
	ServicePath      string   `mapstructure:"service_path"`
	AdvertiseIP      string   `mapstructure:"advertise_ip"`
	User             string   `mapstructure:"user"`
	CapAdd           []string `mapstructure:"cap_add"`
	CapDrop          []string `mapstructure:"cap_drop"`
	NetworkMode      string   `mapstructure:"network_mode"`
	ReadinessTimeout string   `mapstructure:"readiness_timeout"`
}

type DevConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	SourceDir    string `mapstructure:"source_dir"`
	KnowledgeDir string `mapstructure:"knowledge_dir"`
}

type EnvConfig struct {
	// File is an optional dotenv file whose entries become default
	// environment for every created container.
	File string `mapstructure:"file"`
}

type HostsConfig struct {
	// File is an optional YAML inventory of remote engine hosts
	// registered at startup.
	File string `mapstructure:"file"`
}

// Load reads the configuration the caller already pointed viper at
// (config file plus SANDBOXD_* environment overrides), applies
// defaults and validates it.
func Load() (*Config, error) {
	viper.SetDefault("container.base_port", 8100)
	viper.SetDefault("container.service_port", 8000)
	viper.SetDefault("container.service_path", "api")
	viper.SetDefault("container.advertise_ip", "127.0.0.1")
	viper.SetDefault("container.user", "1000:1000")
	viper.SetDefault("container.readiness_timeout", "10s")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Container.BasePort < 1 || c.Container.BasePort > 65535 {
		return fmt.Errorf("container.base_port %d is outside 1-65535", c.Container.BasePort)
	}
	if c.Container.ServicePort < 1 || c.Container.ServicePort > 65535 {
		return fmt.Errorf("container.service_port %d is outside 1-65535", c.Container.ServicePort)
	}
	if _, err := time.ParseDuration(c.Container.ReadinessTimeout); err != nil {
		return fmt.Errorf("container.readiness_timeout: %w", err)
	}

	if c.Dev.Enabled {
		if c.Dev.SourceDir == "" {
			return fmt.Errorf("dev.enabled requires dev.source_dir")
		}
		if _, err := os.Stat(c.Dev.SourceDir); err != nil {
			return fmt.Errorf("dev.source_dir: %w", err)
		}
		if c.Dev.KnowledgeDir != "" {
			if _, err := os.Stat(c.Dev.KnowledgeDir); err != nil {
				return fmt.Errorf("dev.knowledge_dir: %w", err)
			}
		}
	}
	return nil
}

// ReadinessTimeout returns the parsed readiness bound. Load already
// validated the string, so parse failures cannot happen here.
func (c *Config) ReadinessTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Container.ReadinessTimeout)
	return d
}

// DefaultEnv loads the configured dotenv file into KEY=VALUE pairs.
// A missing file setting means no defaults; a set but unreadable file
// is an error.
func (c *Config) DefaultEnv() ([]string, error) {
	if c.Env.File == "" {
		return nil, nil
	}

	values, err := godotenv.Read(c.Env.File)
	if err != nil {
		return nil, fmt.Errorf("env file %s: %w", c.Env.File, err)
	}

	env := make([]string, 0, len(values))
	for key, value := range values {
		env = append(env, key+"="+value)
	}
	log.Debug("loaded default container environment", "file", c.Env.File, "entries", len(env))
	return env, nil
}

// RemoteHosts reads the YAML host inventory. No file configured means
// an empty inventory.
func (c *Config) RemoteHosts() ([]docker.RemoteHost, error) {
	if c.Hosts.File == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(c.Hosts.File)
	if err != nil {
		return nil, fmt.Errorf("hosts file %s: %w", c.Hosts.File, err)
	}

	var inventory struct {
		Hosts []docker.RemoteHost `yaml:"hosts"`
	}
	if err := yaml.Unmarshal(raw, &inventory); err != nil {
		return nil, fmt.Errorf("hosts file %s: %w", c.Hosts.File, err)
	}

	for i, h := range inventory.Hosts {
		if h.Name == "" || h.Host == "" {
			return nil, fmt.Errorf("hosts file %s: entry %d needs name and host", c.Hosts.File, i)
		}
	}
	return inventory.Hosts, nil
}

// ManagerOptions assembles the engine facade options from the loaded
// configuration.
func (c *Config) ManagerOptions() (docker.Options, error) {
	defaultEnv, err := c.DefaultEnv()
	if err != nil {
		return docker.Options{}, err
	}

	return docker.Options{
		SocketPath:       c.Docker.SocketPath,
		BootstrapCommand: c.Docker.BootstrapCommand,
		BasePort:         c.Container.BasePort,
		ServicePort:      c.Container.ServicePort,
		ServicePath:      c.Container.ServicePath,
		AdvertiseIP:      c.Container.AdvertiseIP,
		User:             c.Container.User,
		CapAdd:           c.Container.CapAdd,
		CapDrop:          c.Container.CapDrop,
		NetworkMode:      c.Container.NetworkMode,
		ReadinessTimeout: c.ReadinessTimeout(),
		DevMode:          c.Dev.Enabled,
		DevSourceDir:     c.Dev.SourceDir,
		DevKnowledgeDir:  c.Dev.KnowledgeDir,
		DefaultEnv:       defaultEnv,
	}, nil
}
