package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/pgbranch/pgbranch/internal/pgerr"
	"github.com/pgbranch/pgbranch/internal/statestore"
)

// RemoteClient is the API surface a cloud branching provider must expose.
// Neon, DBLab, and Xata each wrap one of these behind their own
// credential/endpoint configuration. Concrete HTTP wiring against the
// real provider APIs lives outside this module; production use supplies
// a RemoteClient implementation that talks to the provider.
type RemoteClient interface {
	// CreateBranch asks the provider to branch parentHandle (empty for the
	// project's first/root branch) under name, returning the provider's
	// branch handle and the connection endpoint it becomes reachable at.
	CreateBranch(ctx context.Context, parentHandle, name string) (handle, host string, port int, err error)
	DeleteBranch(ctx context.Context, handle string) error
	// Ping is the provider's health check.
	Ping(ctx context.Context) error
}

// genericRemote implements Backend by delegating branch operations to a
// RemoteClient, matching the shape common to Neon, DBLab, and Xata: a thin
// identifier-returning API with no local process lifecycle. Start and Stop
// return BackendUnavailable; Reset deletes the branch and creates it again
// through the client.
type genericRemote struct {
	kind   string
	client RemoteClient
	user   string
}

func (r *genericRemote) Kind() string { return r.kind }

func (r *genericRemote) Create(ctx context.Context, pc ProjectContext, name, parent string) (statestore.Branch, error) {
	dbName, err := deriveName(pc, name)
	if err != nil {
		return statestore.Branch{}, err
	}

	var parentHandle string
	if len(pc.ExistingBranches) > 0 {
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
		parentHandle = parentBranch.Handle
	}

	handle, host, port, err := r.client.CreateBranch(ctx, parentHandle, dbName)
	if err != nil {
		return statestore.Branch{}, pgerr.New(pgerr.RemoteApiError, pgerr.Context{Phase: r.kind + "-create"}, err, "create remote branch %s", dbName)
	}

	return statestore.Branch{
		Name: name, DBName: dbName, Parent: parent, Handle: handle,
		Host: host, Port: port, Status: statestore.StatusRunning, CreatedAt: time.Now().UTC(),
	}, nil
}

func (r *genericRemote) Delete(ctx context.Context, pc ProjectContext, branch statestore.Branch) error {
	if err := r.client.DeleteBranch(ctx, branch.Handle); err != nil {
		return pgerr.New(pgerr.RemoteApiError, pgerr.Context{Phase: r.kind + "-delete"}, err, "delete remote branch %s", branch.Handle)
	}
	return nil
}

func (r *genericRemote) List(ctx context.Context, pc ProjectContext) ([]statestore.Branch, error) {
	out := make([]statestore.Branch, 0, len(pc.ExistingBranches))
	for _, b := range pc.ExistingBranches {
		out = append(out, b)
	}
	return out, nil
}

// Start/Stop are unsupported: none of the three providers expose a
// separate start/stop verb in the branch-handle API this backend wraps.
func (r *genericRemote) Start(ctx context.Context, pc ProjectContext, branch statestore.Branch) (statestore.Branch, error) {
	return branch, pgerr.New(pgerr.BackendUnavailable, pgerr.Context{Phase: r.kind + "-start", Branch: branch.Name}, nil, "start is unsupported for the %s backend", r.kind)
}

func (r *genericRemote) Stop(ctx context.Context, pc ProjectContext, branch statestore.Branch) (statestore.Branch, error) {
	return branch, pgerr.New(pgerr.BackendUnavailable, pgerr.Context{Phase: r.kind + "-stop", Branch: branch.Name}, nil, "stop is unsupported for the %s backend", r.kind)
}

// Reset deletes and recreates the branch from its current parent.
func (r *genericRemote) Reset(ctx context.Context, pc ProjectContext, branch statestore.Branch) (statestore.Branch, error) {
	parent, ok := pc.ExistingBranches[branch.Parent]
	if !ok {
		return branch, errParentMissing(branch.Parent)
	}
	if err := r.Delete(ctx, pc, branch); err != nil {
		return branch, err
	}
	handle, host, port, err := r.client.CreateBranch(ctx, parent.Handle, branch.DBName)
	if err != nil {
		return branch, pgerr.New(pgerr.RemoteApiError, pgerr.Context{Phase: r.kind + "-reset"}, err, "recreate remote branch %s", branch.DBName)
	}
	branch.Handle = handle
	branch.Host = host
	branch.Port = port
	branch.Status = statestore.StatusRunning
	return branch, nil
}

func (r *genericRemote) Connection(ctx context.Context, pc ProjectContext, branch statestore.Branch) (ConnectionInfo, error) {
	return ConnectionInfo{
		Host: branch.Host, Port: branch.Port, Database: branch.DBName, User: r.user,
	}, nil
}

func (r *genericRemote) Health(ctx context.Context, pc ProjectContext) ([]Issue, error) {
	if err := r.client.Ping(ctx); err != nil {
		return []Issue{{Message: fmt.Sprintf("%s API ping failed: %v", r.kind, err)}}, nil
	}
	return nil, nil
}

func (r *genericRemote) Destroy(ctx context.Context, pc ProjectContext) error {
	for _, b := range pc.ExistingBranches {
		if err := r.Delete(ctx, pc, b); err != nil {
			return err
		}
	}
	return nil
}
