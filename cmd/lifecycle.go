package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lifecycleFlags struct {
	host    string
	force   bool
	volumes bool
	timeout int
}

var startCmd = &cobra.Command{
	Use:   "start CONTAINER",
	Short: "Start a stopped container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newManager()
		if err != nil {
			return err
		}
		defer manager.Close()
		return manager.StartContainer(cmd.Context(), args[0], lifecycleFlags.host)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop CONTAINER",
	Short: "Stop a running container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newManager()
		if err != nil {
			return err
		}
		defer manager.Close()
		return manager.StopContainer(cmd.Context(), args[0], lifecycleFlags.force, lifecycleFlags.timeout, lifecycleFlags.host)
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart CONTAINER",
	Short: "Restart a container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newManager()
		if err != nil {
			return err
		}
		defer manager.Close()
		return manager.RestartContainer(cmd.Context(), args[0], lifecycleFlags.timeout, lifecycleFlags.host)
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause CONTAINER",
	Short: "Freeze all processes in a running container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newManager()
		if err != nil {
			return err
		}
		defer manager.Close()
		return manager.PauseContainer(cmd.Context(), args[0], lifecycleFlags.host)
	},
}

var unpauseCmd = &cobra.Command{
	Use:   "unpause CONTAINER",
	Short: "Thaw a paused container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newManager()
		if err != nil {
			return err
		}
		defer manager.Close()
		return manager.UnpauseContainer(cmd.Context(), args[0], lifecycleFlags.host)
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm CONTAINER",
	Short: "Remove a container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newManager()
		if err != nil {
			return err
		}
		defer manager.Close()
		if err := manager.RemoveContainer(cmd.Context(), args[0], lifecycleFlags.force, lifecycleFlags.volumes, lifecycleFlags.host); err != nil {
			return err
		}
		fmt.Println(args[0])
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{startCmd, stopCmd, restartCmd, pauseCmd, unpauseCmd, rmCmd} {
		c.Flags().StringVar(&lifecycleFlags.host, "host", "", "target host (default local)")
		rootCmd.AddCommand(c)
	}
	stopCmd.Flags().BoolVarP(&lifecycleFlags.force, "force", "f", false, "kill immediately with SIGKILL")
	stopCmd.Flags().IntVarP(&lifecycleFlags.timeout, "timeout", "t", 10, "seconds to wait before killing")
	restartCmd.Flags().IntVarP(&lifecycleFlags.timeout, "timeout", "t", 10, "seconds to wait before killing")
	rmCmd.Flags().BoolVarP(&lifecycleFlags.force, "force", "f", false, "remove even if running")
	rmCmd.Flags().BoolVar(&lifecycleFlags.volumes, "volumes", false, "remove anonymous volumes too")
}
