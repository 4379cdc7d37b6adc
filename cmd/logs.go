package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logsFlags struct {
	host string
	tail int
}

var logsCmd = &cobra.Command{
	Use:   "logs CONTAINER",
	Short: "Print container logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newManager()
		if err != nil {
			return err
		}
		defer manager.Close()

		out, err := manager.GetContainerLogs(cmd.Context(), args[0], logsFlags.tail, logsFlags.host)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().StringVar(&logsFlags.host, "host", "", "target host (default local)")
	logsCmd.Flags().IntVarP(&logsFlags.tail, "tail", "n", 100, "number of trailing lines (0 for all)")
}
