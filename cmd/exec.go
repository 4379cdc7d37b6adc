package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/atomxw/sandboxd/internal/docker"
)

var execFlags struct {
	host       string
	timeout    time.Duration
	workdir    string
	user       string
	privileged bool
}

var execCmd = &cobra.Command{
	Use:   "exec CONTAINER COMMAND [ARGS...]",
	Short: "Run a command inside a running container",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().StringVar(&execFlags.host, "host", "", "target host (default local)")
	execCmd.Flags().DurationVar(&execFlags.timeout, "timeout", 0, "command timeout (0 means none)")
	execCmd.Flags().StringVarP(&execFlags.workdir, "workdir", "w", "", "working directory inside the container")
	execCmd.Flags().StringVar(&execFlags.user, "user", "", "uid:gid to run the command as")
	execCmd.Flags().BoolVar(&execFlags.privileged, "privileged", false, "run the command privileged")
}

func runExec(cmd *cobra.Command, args []string) error {
	manager, err := newManager()
	if err != nil {
		return err
	}

	result, err := manager.ExecuteCommand(cmd.Context(), args[0], args[1:], docker.ExecConfig{
		Timeout:    execFlags.timeout,
		Privileged: execFlags.privileged,
		User:       execFlags.user,
		WorkingDir: execFlags.workdir,
	}, execFlags.host)
	if err != nil {
		manager.Close()
		return err
	}

	fmt.Print(result.Stdout)
	fmt.Fprint(os.Stderr, result.Stderr)

	// os.Exit skips deferred calls, so disconnect first.
	manager.Close()
	if result.ExitCode != 0 {
		os.Exit(result.ExitCode)
	}
	return nil
}
