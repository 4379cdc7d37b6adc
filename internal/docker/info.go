package docker

import (
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/system"
)

// Container status values as reported by the engine.
const (
	StatusCreated    = "created"
	StatusRunning    = "running"
	StatusPaused     = "paused"
	StatusRestarting = "restarting"
	StatusExited     = "exited"
	StatusDead       = "dead"
)

const shortIDLen = 12

// ContainerInfo is a point-in-time snapshot of a container's identity
// and state, materialized from an inspect response. It becomes stale
// the moment it is returned. Local and remote backends both produce
// this shape.
type ContainerInfo struct {
	ID      string    `json:"id"`
	ShortID string    `json:"short_id"`
	Name    string    `json:"name"`
	Image   string    `json:"image"`
	Status  string    `json:"status"`
	Created time.Time `json:"created"`
	Started time.Time `json:"started"`
}

// ContainerHandle is the connection descriptor returned to callers
// after a successful create: where the container lives and how to
// reach the service running inside it.
type ContainerHandle struct {
	ContainerID   string `json:"container_id"`
	ShortID       string `json:"container_short_id"`
	ContainerName string `json:"container_name"`
	HostName      string `json:"host_name"`
	IsLocal       bool   `json:"is_local"`
	ServiceURL    string `json:"service_api"`
	ServicePort   int    `json:"service_port"`
}

// HostInfo summarizes one engine endpoint.
type HostInfo struct {
	Name              string `json:"name"`
	ServerVersion     string `json:"server_version"`
	OperatingSystem   string `json:"operating_system"`
	Architecture      string `json:"architecture"`
	CPUs              int    `json:"cpus"`
	MemoryTotal       int64  `json:"memory_total"`
	Containers        int    `json:"containers"`
	ContainersRunning int    `json:"containers_running"`
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// infoFromInspect builds a snapshot from a full inspect response.
func infoFromInspect(resp types.ContainerJSON) *ContainerInfo {
	info := &ContainerInfo{
		ID:      resp.ID,
		ShortID: shortID(resp.ID),
		Name:    strings.TrimPrefix(resp.Name, "/"),
	}
	if resp.Config != nil {
		info.Image = resp.Config.Image
	}
	if resp.State != nil {
		info.Status = resp.State.Status
		if t, err := time.Parse(time.RFC3339Nano, resp.State.StartedAt); err == nil {
			info.Started = t
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, resp.Created); err == nil {
		info.Created = t
	}
	return info
}

// infoFromSummary builds a snapshot from a list entry. Start time is
// not part of list responses and stays zero.
func infoFromSummary(c types.Container) *ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}
	return &ContainerInfo{
		ID:      c.ID,
		ShortID: shortID(c.ID),
		Name:    name,
		Image:   c.Image,
		Status:  c.State,
		Created: time.Unix(c.Created, 0).UTC(),
	}
}

func hostInfoFromSystem(info system.Info) *HostInfo {
	return &HostInfo{
		Name:              info.Name,
		ServerVersion:     info.ServerVersion,
		OperatingSystem:   info.OperatingSystem,
		Architecture:      info.Architecture,
		CPUs:              info.NCPU,
		MemoryTotal:       info.MemTotal,
		Containers:        info.Containers,
		ContainersRunning: info.ContainersRunning,
	}
}
