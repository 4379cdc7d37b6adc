package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atomxw/sandboxd/internal/docker"
	"github.com/atomxw/sandboxd/internal/limits"
)

var createFlags struct {
	name    string
	host    string
	cpus    string
	memory  string
	disk    string
	env     []string
	volumes []string
	ports   []string
	workdir string
	user    string
}

var createCmd = &cobra.Command{
	Use:   "create IMAGE [COMMAND...]",
	Short: "Create and start a sandbox container",
	Long: `Create a resource-limited sandbox container from an image, start it
and print its connection details. The service port is published on
the first free host port at or above the configured base port.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createFlags.name, "name", "", "container name (generated when empty)")
	createCmd.Flags().StringVar(&createFlags.host, "host", "", "target host (default local)")
	createCmd.Flags().StringVar(&createFlags.cpus, "cpus", "", "CPU limit in cores, e.g. 1.5")
	createCmd.Flags().StringVar(&createFlags.memory, "memory", "", "memory limit, e.g. 512M or 2G")
	createCmd.Flags().StringVar(&createFlags.disk, "disk", "", "disk quota, e.g. 10G")
	createCmd.Flags().StringArrayVarP(&createFlags.env, "env", "e", nil, "environment variable KEY=VALUE")
	createCmd.Flags().StringArrayVar(&createFlags.volumes, "volume", nil, "bind mount host:container[:ro]")
	createCmd.Flags().StringArrayVarP(&createFlags.ports, "port", "p", nil, "extra published port HOST:CONTAINER")
	createCmd.Flags().StringVarP(&createFlags.workdir, "workdir", "w", "", "working directory inside the container")
	createCmd.Flags().StringVar(&createFlags.user, "user", "", "uid:gid inside the container")
}

func runCreate(cmd *cobra.Command, args []string) error {
	opts := docker.CreateOptions{
		Image:      args[0],
		Command:    args[1:],
		Name:       createFlags.name,
		Env:        createFlags.env,
		Binds:      createFlags.volumes,
		WorkingDir: createFlags.workdir,
		User:       createFlags.user,
	}

	if createFlags.cpus != "" || createFlags.memory != "" || createFlags.disk != "" {
		lim, err := limits.FromHumanReadable(createFlags.cpus, createFlags.memory, createFlags.disk)
		if err != nil {
			return err
		}
		opts.Limits = lim
	}

	ports, err := parsePortFlags(createFlags.ports)
	if err != nil {
		return err
	}
	opts.Ports = ports

	manager, err := newManager()
	if err != nil {
		return err
	}
	defer manager.Close()

	handle, err := manager.CreateContainer(cmd.Context(), opts, createFlags.host)
	if err != nil {
		return err
	}

	fmt.Printf("Container: %s (%s)\n", handle.ContainerName, handle.ShortID)
	fmt.Printf("Host: %s\n", handle.HostName)
	fmt.Printf("Service: %s\n", handle.ServiceURL)
	return nil
}

func parsePortFlags(specs []string) ([]docker.PortMapping, error) {
	var mappings []docker.PortMapping
	for _, spec := range specs {
		hostPart, containerPart, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("port %q must be HOST:CONTAINER", spec)
		}
		containerPart, proto, _ := strings.Cut(containerPart, "/")

		hostPort, err := strconv.Atoi(hostPart)
		if err != nil {
			return nil, fmt.Errorf("port %q: invalid host port", spec)
		}
		containerPort, err := strconv.Atoi(containerPart)
		if err != nil {
			return nil, fmt.Errorf("port %q: invalid container port", spec)
		}

		mappings = append(mappings, docker.PortMapping{
			HostPort:      hostPort,
			ContainerPort: containerPort,
			Protocol:      proto,
		})
	}
	return mappings, nil
}
