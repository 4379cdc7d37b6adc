package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var psFlags struct {
	host string
	all  bool
}

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List containers on a host",
	RunE:  runPs,
}

func init() {
	rootCmd.AddCommand(psCmd)
	psCmd.Flags().StringVar(&psFlags.host, "host", "", "target host (default local)")
	psCmd.Flags().BoolVarP(&psFlags.all, "all", "a", false, "include stopped containers")
}

func runPs(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}
	defer manager.Close()

	containers, err := manager.ListContainers(cmd.Context(), psFlags.all, psFlags.host)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tIMAGE\tSTATUS\tCREATED")
	for _, c := range containers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.ShortID, c.Name, c.Image, c.Status, c.Created.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
