package cmd

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
)

var monitorFlags struct {
	host     string
	duration time.Duration
	interval time.Duration
}

var monitorCmd = &cobra.Command{
	Use:   "monitor CONTAINER",
	Short: "Sample a container's resource usage over a time window",
	Long: `Monitor takes one stats snapshot per interval until the duration
elapses, then prints the aggregated CPU and memory figures.`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorFlags.host, "host", "", "target host (default local)")
	monitorCmd.Flags().DurationVarP(&monitorFlags.duration, "duration", "d", 10*time.Second, "sampling window")
	monitorCmd.Flags().DurationVarP(&monitorFlags.interval, "interval", "i", time.Second, "time between samples")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}
	defer manager.Close()

	metrics, err := manager.MonitorResources(cmd.Context(), args[0], monitorFlags.duration, monitorFlags.interval, monitorFlags.host)
	if err != nil {
		return err
	}

	fmt.Printf("Samples: %d over %s\n", len(metrics.Snapshots), metrics.EndTime.Sub(metrics.StartTime).Round(time.Millisecond))
	fmt.Printf("CPU: avg %.1f%%, peak %.1f%%\n", metrics.AvgCPU(), metrics.MaxCPU())
	fmt.Printf("Memory: avg %s, peak %s\n",
		units.BytesSize(float64(metrics.AvgMemory())),
		units.BytesSize(float64(metrics.MaxMemory())))
	return nil
}
