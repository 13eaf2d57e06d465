// Package lifecycle is the sole mutator of the State Store: it orchestrates
// backend operations against the persisted branch tree, enforcing the
// branch invariants (unique names, single root, parent forest) and
// wrapping every mutation in a two-phase write guarded by a per-project
// exclusive lock.
package lifecycle

import (
	"context"
	"sort"
	"time"

	"github.com/spf13/afero"

	"github.com/pgbranch/pgbranch/internal/backend"
	"github.com/pgbranch/pgbranch/internal/config"
	"github.com/pgbranch/pgbranch/internal/pgerr"
	"github.com/pgbranch/pgbranch/internal/statestore"
)

const defaultDeadline = 120 * time.Second

// Engine binds one project to its resolved backend and config. Callers
// construct a new Engine per CLI invocation once the backend kind and
// connection details have been resolved from EffectiveConfig.
type Engine struct {
	Fs          afero.Fs
	StatePath   string // path to the per-user state file
	ProjectRoot string // canonicalised repository root, the Projects map key
	Backend     backend.Backend
	Cfg         config.EffectiveConfig
	Deadline    time.Duration // 0 means defaultDeadline
}

func (e *Engine) deadline() time.Duration {
	if e.Deadline > 0 {
		return e.Deadline
	}
	if e.Cfg.Behavior.OperationDeadlineSeconds > 0 {
		return time.Duration(e.Cfg.Behavior.OperationDeadlineSeconds) * time.Second
	}
	return defaultDeadline
}

// withExclusive runs fn with the project's exclusive lock held and the
// store loaded, then always persists whatever ps ends up holding, success
// or failure. Create/Delete mutate ps a second time on backend failure (to
// roll back the reservation/Deleting marker they save mid-fn); that rollback
// only reaches disk because this always saves after fn returns, not just
// when fn succeeds.
func (e *Engine) withExclusive(ctx context.Context, fn func(store *statestore.Store, ps *statestore.ProjectState) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.deadline())
	defer cancel()

	lock := statestore.NewLock(e.StatePath)
	if err := lock.Acquire(ctx); err != nil {
		return err
	}
	defer lock.Release()

	store, err := statestore.Load(e.Fs, e.StatePath)
	if err != nil {
		return err
	}
	ps := store.Project(e.ProjectRoot)

	fnErr := fn(store, &ps)

	// Destroy intentionally removes the project's own entry from
	// store.Projects on success; don't resurrect it here. Every other
	// mutator only ever edits ps in place, so re-setting it is what
	// persists their rollback as well as their happy path.
	if _, stillTracked := store.Projects[e.ProjectRoot]; stillTracked || fnErr != nil {
		store.SetProject(e.ProjectRoot, ps)
	}
	if saveErr := statestore.Save(e.Fs, e.StatePath, store); saveErr != nil && fnErr == nil {
		return saveErr
	}
	return fnErr
}

func (e *Engine) projectContext(ps statestore.ProjectState) backend.ProjectContext {
	image := ps.DockerImage
	if image == "" {
		image = e.Cfg.Backend.Image
	}
	dataRoot := ps.DataRoot
	if dataRoot == "" {
		dataRoot = e.Cfg.Backend.DataRoot
	}
	portStart := ps.PortRangeStart
	if portStart == 0 {
		portStart = e.Cfg.Backend.PortRangeStart
	}
	existing := make(map[string]statestore.Branch, len(ps.Branches))
	for k, v := range ps.Branches {
		existing[k] = v
	}
	return backend.ProjectContext{
		ProjectRoot:      e.ProjectRoot,
		DataRoot:         dataRoot,
		PortRangeStart:   portStart,
		Image:            image,
		NamingStrategy:   e.Cfg.Naming.Strategy,
		Prefix:           e.Cfg.Naming.Prefix,
		Suffix:           e.Cfg.Naming.Suffix,
		ExistingBranches: existing,
	}
}

func errBranchExists(name string) error {
	return pgerr.New(pgerr.NameCollision, pgerr.Context{Phase: "lifecycle-create", Branch: name}, nil, "branch %q already exists", name)
}

func errBranchMissing(name string) error {
	return pgerr.New(pgerr.ParentMissing, pgerr.Context{Phase: "lifecycle", Branch: name}, nil, "branch %q does not exist", name)
}

// Create reserves name in Creating status, invokes the backend, and either
// commits the resulting branch or rolls the reservation back.
func (e *Engine) Create(ctx context.Context, name, parent string) (statestore.Branch, error) {
	var result statestore.Branch
	if e.Cfg.Git.Disabled {
		return result, pgerr.New(pgerr.PolicyBlocked, pgerr.Context{Phase: "lifecycle-create", Branch: name}, nil, "pgbranch is disabled for this project")
	}
	err := e.withExclusive(ctx, func(store *statestore.Store, ps *statestore.ProjectState) error {
		if _, exists := ps.Branches[name]; exists {
			return errBranchExists(name)
		}

		pc := e.projectContext(*ps)

		ps.Branches[name] = statestore.Branch{Name: name, Parent: parent, Status: statestore.StatusCreating, CreatedAt: time.Now().UTC()}
		store.SetProject(e.ProjectRoot, *ps)
		if err := statestore.Save(e.Fs, e.StatePath, store); err != nil {
			return err
		}

		branch, err := e.Backend.Create(ctx, pc, name, parent)
		if err != nil {
			// A readiness timeout still produced a container worth keeping
			// around for inspection; persist it as Errored instead of
			// rolling the reservation back.
			if branch.Status == statestore.StatusErrored {
				ps.Branches[name] = branch
			} else {
				delete(ps.Branches, name)
			}
			return err
		}

		if ps.BackendKind == "" {
			ps.BackendKind = e.Cfg.Backend.Kind
		}
		if ps.CurrentBranch == "" {
			ps.CurrentBranch = name
		}
		ps.Branches[name] = branch
		result = branch
		return nil
	})
	return result, err
}

// Delete marks name Deleting, invokes the backend, and removes the entry on
// success; on failure the branch reverts to its prior status.
func (e *Engine) Delete(ctx context.Context, name string) error {
	return e.withExclusive(ctx, func(store *statestore.Store, ps *statestore.ProjectState) error {
		branch, ok := ps.Branches[name]
		if !ok {
			return errBranchMissing(name)
		}
		prevStatus := branch.Status
		pc := e.projectContext(*ps)

		branch.Status = statestore.StatusDeleting
		ps.Branches[name] = branch
		store.SetProject(e.ProjectRoot, *ps)
		if err := statestore.Save(e.Fs, e.StatePath, store); err != nil {
			return err
		}

		if err := e.Backend.Delete(ctx, pc, branch); err != nil {
			branch.Status = prevStatus
			ps.Branches[name] = branch
			return err
		}

		delete(ps.Branches, name)
		if ps.CurrentBranch == name {
			ps.CurrentBranch = ""
		}
		return nil
	})
}

// List returns every persisted branch for the project under a shared lock.
func (e *Engine) List(ctx context.Context) ([]statestore.Branch, error) {
	ctx, cancel := context.WithTimeout(ctx, e.deadline())
	defer cancel()

	lock := statestore.NewLock(e.StatePath)
	if err := lock.AcquireShared(ctx); err != nil {
		return nil, err
	}
	defer lock.Release()

	store, err := statestore.Load(e.Fs, e.StatePath)
	if err != nil {
		return nil, err
	}
	ps := store.Project(e.ProjectRoot)
	out := make([]statestore.Branch, 0, len(ps.Branches))
	for _, b := range ps.Branches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Switch sets the current branch, creating it first (from the current or
// main branch) if it does not yet exist and policy allows. It reports
// whether a create happened, so the caller can decide whether to run
// post-commands against a freshly created branch.
func (e *Engine) Switch(ctx context.Context, name, fallbackParent string) (branch statestore.Branch, created bool, err error) {
	existing, listErr := e.List(ctx)
	if listErr != nil {
		return statestore.Branch{}, false, listErr
	}
	for _, b := range existing {
		if b.Name == name {
			branch = b
			break
		}
	}
	if branch.Name == "" {
		branch, err = e.Create(ctx, name, fallbackParent)
		if err != nil {
			return statestore.Branch{}, false, err
		}
		created = true
	}

	err = e.withExclusive(ctx, func(store *statestore.Store, ps *statestore.ProjectState) error {
		ps.CurrentBranch = name
		return nil
	})
	return branch, created, err
}

// Start/Stop/Reset mutate a branch's running state without changing the
// tree structure.
func (e *Engine) Start(ctx context.Context, name string) (statestore.Branch, error) {
	var result statestore.Branch
	err := e.withExclusive(ctx, func(store *statestore.Store, ps *statestore.ProjectState) error {
		branch, ok := ps.Branches[name]
		if !ok {
			return errBranchMissing(name)
		}
		pc := e.projectContext(*ps)
		updated, err := e.Backend.Start(ctx, pc, branch)
		ps.Branches[name] = updated
		result = updated
		return err
	})
	return result, err
}

func (e *Engine) Stop(ctx context.Context, name string) (statestore.Branch, error) {
	var result statestore.Branch
	err := e.withExclusive(ctx, func(store *statestore.Store, ps *statestore.ProjectState) error {
		branch, ok := ps.Branches[name]
		if !ok {
			return errBranchMissing(name)
		}
		pc := e.projectContext(*ps)
		updated, err := e.Backend.Stop(ctx, pc, branch)
		ps.Branches[name] = updated
		result = updated
		return err
	})
	return result, err
}

// Reset re-clones name from its parent snapshot, preserving name and port.
func (e *Engine) Reset(ctx context.Context, name string) (statestore.Branch, error) {
	var result statestore.Branch
	err := e.withExclusive(ctx, func(store *statestore.Store, ps *statestore.ProjectState) error {
		branch, ok := ps.Branches[name]
		if !ok {
			return errBranchMissing(name)
		}
		pc := e.projectContext(*ps)
		updated, err := e.Backend.Reset(ctx, pc, branch)
		ps.Branches[name] = updated
		result = updated
		return err
	})
	return result, err
}

// Connection returns connection details for an existing branch, for
// `connection <name>`. Read-only: it does not touch branch status.
func (e *Engine) Connection(ctx context.Context, name string) (backend.ConnectionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, e.deadline())
	defer cancel()

	lock := statestore.NewLock(e.StatePath)
	if err := lock.AcquireShared(ctx); err != nil {
		return backend.ConnectionInfo{}, err
	}
	defer lock.Release()

	store, err := statestore.Load(e.Fs, e.StatePath)
	if err != nil {
		return backend.ConnectionInfo{}, err
	}
	ps := store.Project(e.ProjectRoot)
	branch, ok := ps.Branches[name]
	if !ok {
		return backend.ConnectionInfo{}, errBranchMissing(name)
	}
	pc := e.projectContext(ps)
	return e.Backend.Connection(ctx, pc, branch)
}

// Destroy tears down every branch in the project, including the root, and
// clears its State Store entry entirely.
func (e *Engine) Destroy(ctx context.Context) error {
	return e.withExclusive(ctx, func(store *statestore.Store, ps *statestore.ProjectState) error {
		pc := e.projectContext(*ps)
		if err := e.Backend.Destroy(ctx, pc); err != nil {
			return err
		}
		delete(store.Projects, e.ProjectRoot)
		return nil
	})
}

// Cleanup keeps the most recent maxCount non-root branches by creation
// time (ties broken by name), deleting the rest. The root and the
// currently checked-out branch are never deleted.
func (e *Engine) Cleanup(ctx context.Context, maxCount int) ([]string, error) {
	var removed []string
	err := e.withExclusive(ctx, func(store *statestore.Store, ps *statestore.ProjectState) error {
		var candidates []statestore.Branch
		for _, b := range ps.Branches {
			if b.IsRoot() || b.Name == ps.CurrentBranch {
				continue
			}
			candidates = append(candidates, b)
		}
		sort.Slice(candidates, func(i, j int) bool {
			if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
				return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
			}
			return candidates[i].Name < candidates[j].Name
		})
		if len(candidates) <= maxCount {
			return nil
		}
		toRemove := candidates[maxCount:]
		pc := e.projectContext(*ps)
		for _, b := range toRemove {
			if err := e.Backend.Delete(ctx, pc, b); err != nil {
				return err
			}
			delete(ps.Branches, b.Name)
			removed = append(removed, b.Name)
		}
		return nil
	})
	return removed, err
}

// PurgeStuck removes every branch left in Creating/Deleting by a crash
// between a two-phase write's reservation and its commit/rollback, per
// `doctor --fix`. It does not call the backend: a stuck Creating entry
// never reached a backend resource worth tearing down, and a stuck
// Deleting entry's backend resource may already be gone, so the safe
// repair is simply to drop the dangling State Store entry.
func (e *Engine) PurgeStuck(ctx context.Context) ([]string, error) {
	var purged []string
	err := e.withExclusive(ctx, func(store *statestore.Store, ps *statestore.ProjectState) error {
		for name, b := range ps.Branches {
			if b.Status == statestore.StatusCreating || b.Status == statestore.StatusDeleting {
				delete(ps.Branches, name)
				purged = append(purged, name)
			}
		}
		return nil
	})
	return purged, err
}

// Reconcile compares the persisted branch table against the backend's own
// List(), surfacing state left in Creating/Deleting by a crash between
// phases, for `doctor` to act on.
func (e *Engine) Reconcile(ctx context.Context) ([]backend.Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, e.deadline())
	defer cancel()

	lock := statestore.NewLock(e.StatePath)
	if err := lock.AcquireShared(ctx); err != nil {
		return nil, err
	}
	defer lock.Release()

	store, err := statestore.Load(e.Fs, e.StatePath)
	if err != nil {
		return nil, err
	}
	ps := store.Project(e.ProjectRoot)
	pc := e.projectContext(ps)

	var issues []backend.Issue
	for name, b := range ps.Branches {
		switch b.Status {
		case statestore.StatusCreating:
			issues = append(issues, backend.Issue{Message: "branch " + name + " is stuck in Creating; a prior create was interrupted"})
		case statestore.StatusDeleting:
			issues = append(issues, backend.Issue{Message: "branch " + name + " is stuck in Deleting; a prior delete was interrupted"})
		}
	}
	listed, err := e.Backend.List(ctx, pc)
	if err != nil {
		return issues, err
	}
	known := make(map[string]bool, len(listed))
	for _, b := range listed {
		known[b.Name] = true
	}
	for name, b := range ps.Branches {
		if b.Status != statestore.StatusCreating && b.Status != statestore.StatusDeleting && !known[name] {
			issues = append(issues, backend.Issue{Message: "branch " + name + " is in local state but not listed by the backend"})
		}
	}
	backendIssues, err := e.Backend.Health(ctx, pc)
	if err != nil {
		return issues, err
	}
	issues = append(issues, backendIssues...)
	return issues, nil
}
