package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/atomxw/sandboxd/internal/docker"
)

var hostsAddFlags struct {
	port   int
	caCert string
	cert   string
	key    string
	verify bool
}

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Manage remote Docker hosts",
}

var hostsAddCmd = &cobra.Command{
	Use:   "add NAME ADDRESS",
	Short: "Register a remote host",
	Long: `Register a TLS-secured remote Docker host. The host is dialed and
pinged before registration; an unreachable host is rejected.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newManager()
		if err != nil {
			return err
		}
		defer manager.Close()

		host := docker.RemoteHost{
			Name: args[0],
			Host: args[1],
			Port: hostsAddFlags.port,
		}
		if hostsAddFlags.caCert != "" || hostsAddFlags.cert != "" || hostsAddFlags.key != "" {
			host.TLS = &docker.TLSConfig{
				CACertPath:     hostsAddFlags.caCert,
				ClientCertPath: hostsAddFlags.cert,
				ClientKeyPath:  hostsAddFlags.key,
				Verify:         hostsAddFlags.verify,
			}
		}

		if !manager.AddRemoteHost(host) {
			return fmt.Errorf("host %s could not be registered", host.Name)
		}
		fmt.Printf("Host %s registered\n", host.Name)
		return nil
	},
}

var hostsRmCmd = &cobra.Command{
	Use:   "rm NAME",
	Short: "Deregister a remote host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newManager()
		if err != nil {
			return err
		}
		defer manager.Close()

		if !manager.RemoveRemoteHost(args[0]) {
			return fmt.Errorf("host %s is not registered", args[0])
		}
		fmt.Printf("Host %s removed\n", args[0])
		return nil
	},
}

var hostsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List registered hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newManager()
		if err != nil {
			return err
		}
		defer manager.Close()

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tADDRESS\tTYPE")
		for _, h := range manager.ListHosts() {
			if h.IsLocal {
				fmt.Fprintf(w, "%s\t-\tlocal\n", h.HostName)
				continue
			}
			port := h.Remote.Port
			if port == 0 {
				port = docker.DefaultRemotePort
			}
			fmt.Fprintf(w, "%s\t%s:%d\tremote\n", h.HostName, h.Remote.Host, port)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(hostsCmd)
	hostsCmd.AddCommand(hostsAddCmd, hostsRmCmd, hostsLsCmd)
	hostsAddCmd.Flags().IntVar(&hostsAddFlags.port, "port", docker.DefaultRemotePort, "engine API port")
	hostsAddCmd.Flags().StringVar(&hostsAddFlags.caCert, "ca", "", "CA certificate file")
	hostsAddCmd.Flags().StringVar(&hostsAddFlags.cert, "cert", "", "client certificate file")
	hostsAddCmd.Flags().StringVar(&hostsAddFlags.key, "key", "", "client key file")
	hostsAddCmd.Flags().BoolVar(&hostsAddFlags.verify, "verify", false, "verify the server certificate")
}
