package backend

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pgbranch/pgbranch/internal/container"
	"github.com/pgbranch/pgbranch/internal/pgerr"
	"github.com/pgbranch/pgbranch/internal/statestore"
	"github.com/pgbranch/pgbranch/internal/storage"
)

// ContainerRuntime is the subset of *container.Driver that Local depends
// on, narrowed to an interface so tests can substitute a fake runtime
// instead of talking to a real Docker daemon.
type ContainerRuntime interface {
	Run(ctx context.Context, spec container.RunSpec) (string, error)
	Stop(ctx context.Context, id string) error
	Start(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	Pause(ctx context.Context, id string) error
	Unpause(ctx context.Context, id string) error
	Inspect(ctx context.Context, id string) (container.Info, error)
}

// ReadyFunc probes a container for PostgreSQL readiness. Defaults to
// container.WaitReady; overridable in tests.
type ReadyFunc func(ctx context.Context, host string, port int, user, password, database string) error

// Local implements CoW branching on this machine: one Docker container and
// one data directory per Running branch.
type Local struct {
	Storage    storage.Driver
	Containers ContainerRuntime
	Host       string // reachable host for containers, normally 127.0.0.1
	DBPassword string
	Ready      ReadyFunc // nil means container.WaitReady
}

func (l *Local) waitReady(ctx context.Context, port int) error {
	fn := l.Ready
	if fn == nil {
		fn = container.WaitReady
	}
	return fn(ctx, l.Host, port, "postgres", l.DBPassword, "postgres")
}

func (l *Local) Kind() string { return "local" }

func (l *Local) dataDir(pc ProjectContext, dbName string) string {
	return filepath.Join(pc.DataRoot, dbName)
}

func (l *Local) containerName(pc ProjectContext, dbName string) string {
	return "pgbranch_" + filepath.Base(pc.ProjectRoot) + "_" + dbName
}

// Create implements both root initialisation (the project's first branch,
// an empty cluster) and ordinary child branching (pause parent, clone its
// data directory, start a new container against the clone).
func (l *Local) Create(ctx context.Context, pc ProjectContext, name, parent string) (statestore.Branch, error) {
	dbName, err := deriveName(pc, name)
	if err != nil {
		return statestore.Branch{}, err
	}

	if len(pc.ExistingBranches) == 0 {
		return l.createRoot(ctx, pc, name, dbName)
	}

	if parent == "" {
		root, ok := pc.RootBranch()
		if !ok {
			return statestore.Branch{}, errParentMissing("<root>")
		}
		parent = root.Name
	}
	parentBranch, ok := pc.ExistingBranches[parent]
	if !ok {
		return statestore.Branch{}, errParentMissing(parent)
	}

	childDir := l.dataDir(pc, dbName)
	if err := l.Containers.Pause(ctx, parentBranch.Handle); err != nil {
		return statestore.Branch{}, err
	}
	cloneErr := l.Storage.Clone(ctx, l.dataDir(pc, parentBranch.DBName), childDir)
	if unpauseErr := l.Containers.Unpause(ctx, parentBranch.Handle); unpauseErr != nil && cloneErr == nil {
		cloneErr = unpauseErr
	}
	if cloneErr != nil {
		return statestore.Branch{}, pgerr.New(pgerr.StorageUnavailable, pgerr.Context{Phase: "local-create"}, cloneErr, "clone data directory for %s", name)
	}

	port, err := container.SelectPort(pc.PortRangeStart, pc.UsedPorts())
	if err != nil {
		return statestore.Branch{}, pgerr.New(pgerr.ContainerFailed, pgerr.Context{Phase: "local-create"}, err, "allocate port")
	}
	id, err := l.Containers.Run(ctx, container.RunSpec{
		Name:    l.containerName(pc, dbName),
		Image:   pc.Image,
		DataDir: childDir,
		Port:    port,
		Env:     []string{"POSTGRES_PASSWORD=" + l.DBPassword},
	})
	if err != nil {
		return statestore.Branch{}, err
	}
	if err := l.waitReady(ctx, port); err != nil {
		return statestore.Branch{
			Name: name, DBName: dbName, Parent: parent, Handle: id, Host: l.Host, Port: port,
			Status: statestore.StatusErrored, CreatedAt: time.Now().UTC(),
		}, err
	}

	return statestore.Branch{
		Name: name, DBName: dbName, Parent: parent, Handle: id,
		Host: l.Host, Port: port, Status: statestore.StatusRunning, CreatedAt: time.Now().UTC(),
	}, nil
}

func (l *Local) createRoot(ctx context.Context, pc ProjectContext, name, dbName string) (statestore.Branch, error) {
	dataDir := l.dataDir(pc, dbName)
	port, err := container.SelectPort(pc.PortRangeStart, nil)
	if err != nil {
		return statestore.Branch{}, pgerr.New(pgerr.ContainerFailed, pgerr.Context{Phase: "local-create-root"}, err, "allocate port")
	}
	id, err := l.Containers.Run(ctx, container.RunSpec{
		Name:    l.containerName(pc, dbName),
		Image:   pc.Image,
		DataDir: dataDir,
		Port:    port,
		Env:     []string{"POSTGRES_PASSWORD=" + l.DBPassword},
	})
	if err != nil {
		return statestore.Branch{}, err
	}
	if err := l.waitReady(ctx, port); err != nil {
		return statestore.Branch{
			Name: name, DBName: dbName, Handle: id, Host: l.Host, Port: port,
			Status: statestore.StatusErrored, CreatedAt: time.Now().UTC(),
		}, err
	}
	return statestore.Branch{
		Name: name, DBName: dbName, Handle: id, Host: l.Host, Port: port,
		Status: statestore.StatusRunning, CreatedAt: time.Now().UTC(),
	}, nil
}

func (l *Local) Delete(ctx context.Context, pc ProjectContext, branch statestore.Branch) error {
	_ = l.Containers.Stop(ctx, branch.Handle)
	if err := l.Containers.Remove(ctx, branch.Handle); err != nil {
		return err
	}
	return l.Storage.Destroy(ctx, l.dataDir(pc, branch.DBName))
}

func (l *Local) List(ctx context.Context, pc ProjectContext) ([]statestore.Branch, error) {
	out := make([]statestore.Branch, 0, len(pc.ExistingBranches))
	for _, b := range pc.ExistingBranches {
		out = append(out, b)
	}
	return out, nil
}

func (l *Local) Start(ctx context.Context, pc ProjectContext, branch statestore.Branch) (statestore.Branch, error) {
	if err := l.Containers.Start(ctx, branch.Handle); err != nil {
		return branch, err
	}
	if err := l.waitReady(ctx, branch.Port); err != nil {
		branch.Status = statestore.StatusErrored
		return branch, err
	}
	branch.Status = statestore.StatusRunning
	return branch, nil
}

func (l *Local) Stop(ctx context.Context, pc ProjectContext, branch statestore.Branch) (statestore.Branch, error) {
	if err := l.Containers.Stop(ctx, branch.Handle); err != nil {
		return branch, err
	}
	branch.Status = statestore.StatusStopped
	return branch, nil
}

// Reset stops the child, destroys its data directory, re-clones from the
// parent, and restarts it. Reset of a running branch auto-stops it rather
// than failing.
func (l *Local) Reset(ctx context.Context, pc ProjectContext, branch statestore.Branch) (statestore.Branch, error) {
	parent, ok := pc.ExistingBranches[branch.Parent]
	if !ok {
		return branch, errParentMissing(branch.Parent)
	}
	_ = l.Containers.Stop(ctx, branch.Handle)
	childDir := l.dataDir(pc, branch.DBName)
	parentDir := l.dataDir(pc, parent.DBName)

	if err := l.Containers.Pause(ctx, parent.Handle); err != nil {
		return branch, err
	}
	resetErr := l.Storage.Reset(ctx, childDir, parentDir)
	if unpauseErr := l.Containers.Unpause(ctx, parent.Handle); unpauseErr != nil && resetErr == nil {
		resetErr = unpauseErr
	}
	if resetErr != nil {
		return branch, pgerr.New(pgerr.StorageUnavailable, pgerr.Context{Phase: "local-reset"}, resetErr, "reset data directory for %s", branch.Name)
	}

	if err := l.Containers.Start(ctx, branch.Handle); err != nil {
		return branch, err
	}
	if err := l.waitReady(ctx, branch.Port); err != nil {
		branch.Status = statestore.StatusErrored
		return branch, err
	}
	branch.Status = statestore.StatusRunning
	return branch, nil
}

func (l *Local) Connection(ctx context.Context, pc ProjectContext, branch statestore.Branch) (ConnectionInfo, error) {
	return ConnectionInfo{
		Host: branch.Host, Port: branch.Port, Database: branch.DBName,
		User: "postgres", Password: l.DBPassword,
	}, nil
}

func (l *Local) Health(ctx context.Context, pc ProjectContext) ([]Issue, error) {
	var issues []Issue
	for _, b := range pc.ExistingBranches {
		info, err := l.Containers.Inspect(ctx, b.Handle)
		if err != nil {
			issues = append(issues, Issue{Message: fmt.Sprintf("branch %s: container %s not found: %v", b.Name, b.Handle, err)})
			continue
		}
		if b.Status == statestore.StatusRunning && !info.Running {
			issues = append(issues, Issue{Message: fmt.Sprintf("branch %s: state says Running but container is stopped", b.Name)})
		}
	}
	return issues, nil
}

func (l *Local) Destroy(ctx context.Context, pc ProjectContext) error {
	for _, b := range pc.ExistingBranches {
		if err := l.Delete(ctx, pc, b); err != nil {
			return err
		}
	}
	return l.Storage.Destroy(ctx, pc.DataRoot)
}
