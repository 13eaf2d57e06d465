// Package container drives PostgreSQL containers for the Local backend:
// start/stop/inspect bound to a data directory and host port, readiness
// polling, and host port selection.
package container

import (
	"context"
	"io"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/pgbranch/pgbranch/internal/pgerr"
)

const pgPort = "5432/tcp"

// Driver wraps the Docker Engine API client, scoped to pgbranch's own
// containers.
type Driver struct {
	cli *client.Client
}

func New(cli *client.Client) *Driver {
	return &Driver{cli: cli}
}

// Info is the subset of container state the Lifecycle Engine needs.
type Info struct {
	ID      string
	Running bool
	Port    int
}

// RunSpec describes a container to start.
type RunSpec struct {
	Name    string
	Image   string
	DataDir string
	Port    int
	Env     []string
}

// Run creates and starts a container bound to DataDir and Port, pulling
// Image first if absent.
func (d *Driver) Run(ctx context.Context, spec RunSpec) (string, error) {
	if err := d.ensureImage(ctx, spec.Image); err != nil {
		return "", err
	}
	hostPort := strconv.Itoa(spec.Port)
	cfg := &container.Config{
		Image: spec.Image,
		Env:   spec.Env,
		Healthcheck: &container.HealthConfig{
			Test: []string{"CMD", "pg_isready", "-U", "postgres"},
		},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			nat.Port(pgPort): []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: hostPort}},
		},
		Binds: []string{spec.DataDir + ":/var/lib/postgresql/data"},
	}
	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return "", pgerr.New(pgerr.ContainerFailed, pgerr.Context{Phase: "container-create"}, err, "create container %s", spec.Name)
	}
	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", pgerr.New(pgerr.ContainerFailed, pgerr.Context{Phase: "container-start"}, err, "start container %s", resp.ID)
	}
	return resp.ID, nil
}

func (d *Driver) ensureImage(ctx context.Context, ref string) error {
	_, _, err := d.cli.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return nil
	}
	reader, err := d.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return pgerr.New(pgerr.ContainerFailed, pgerr.Context{Phase: "container-pull"}, err, "pull image %s", ref)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

func (d *Driver) Stop(ctx context.Context, id string) error {
	if err := d.cli.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		return pgerr.New(pgerr.ContainerFailed, pgerr.Context{Phase: "container-stop"}, err, "stop container %s", id)
	}
	return nil
}

func (d *Driver) Start(ctx context.Context, id string) error {
	if err := d.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return pgerr.New(pgerr.ContainerFailed, pgerr.Context{Phase: "container-start"}, err, "start container %s", id)
	}
	return nil
}

func (d *Driver) Remove(ctx context.Context, id string) error {
	if err := d.cli.ContainerRemove(ctx, id, container.RemoveOptions{RemoveVolumes: true, Force: true}); err != nil {
		return pgerr.New(pgerr.ContainerFailed, pgerr.Context{Phase: "container-remove"}, err, "remove container %s", id)
	}
	return nil
}

func (d *Driver) Pause(ctx context.Context, id string) error {
	if err := d.cli.ContainerPause(ctx, id); err != nil {
		return pgerr.New(pgerr.ContainerFailed, pgerr.Context{Phase: "container-pause"}, err, "pause container %s", id)
	}
	return nil
}

func (d *Driver) Unpause(ctx context.Context, id string) error {
	if err := d.cli.ContainerUnpause(ctx, id); err != nil {
		return pgerr.New(pgerr.ContainerFailed, pgerr.Context{Phase: "container-unpause"}, err, "unpause container %s", id)
	}
	return nil
}

func (d *Driver) Inspect(ctx context.Context, id string) (Info, error) {
	j, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return Info{}, pgerr.New(pgerr.ContainerFailed, pgerr.Context{Phase: "container-inspect"}, err, "inspect container %s", id)
	}
	info := Info{ID: j.ID, Running: j.State != nil && j.State.Running}
	if bindings, ok := j.NetworkSettings.Ports[nat.Port(pgPort)]; ok && len(bindings) > 0 {
		if p, err := strconv.Atoi(bindings[0].HostPort); err == nil {
			info.Port = p
		}
	}
	return info, nil
}
