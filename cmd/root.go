package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atomxw/sandboxd/internal/config"
	"github.com/atomxw/sandboxd/internal/docker"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sandboxd",
	Short: "Sandboxd - sandboxed container management",
	Long: `Sandboxd creates and manages resource-limited sandbox containers
on the local Docker daemon and on TLS-secured remote hosts.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sandboxd.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("sandboxd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		if userConfigDir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(userConfigDir + "/sandboxd")
		}
		viper.AddConfigPath("/etc/sandboxd")
	}

	viper.SetEnvPrefix("SANDBOXD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		os.Exit(1)
	}
}

// newManager loads the configuration, connects to the local daemon
// and registers the host inventory. Every subcommand goes through
// here; the caller owns Close.
func newManager() (*docker.UnifiedManager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	opts, err := cfg.ManagerOptions()
	if err != nil {
		return nil, err
	}

	manager, err := docker.NewUnifiedManager(opts)
	if err != nil {
		return nil, err
	}

	hosts, err := cfg.RemoteHosts()
	if err != nil {
		manager.Close()
		return nil, err
	}
	for _, h := range hosts {
		if !manager.AddRemoteHost(h) {
			log.Warn("skipping unreachable host from inventory", "host", h.Name)
		}
	}

	return manager, nil
}
