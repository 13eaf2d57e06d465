package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgbranch/pgbranch/internal/backend"
	"github.com/pgbranch/pgbranch/internal/config"
	"github.com/pgbranch/pgbranch/internal/pgerr"
	"github.com/pgbranch/pgbranch/internal/statestore"
)

// fakeBackend is an in-memory backend.Backend double for exercising the
// Lifecycle Engine's state transitions without any real backend.
type fakeBackend struct {
	createErr     error
	createErrored bool // return an Errored branch alongside createErr
	deleteErr     error
	handles       int
}

func (f *fakeBackend) Kind() string { return "fake" }

func (f *fakeBackend) Create(ctx context.Context, pc backend.ProjectContext, name, parent string) (statestore.Branch, error) {
	if f.createErr != nil {
		if f.createErrored {
			return statestore.Branch{
				Name: name, DBName: name, Parent: parent, Handle: "h", Status: statestore.StatusErrored, CreatedAt: time.Now().UTC(),
			}, f.createErr
		}
		return statestore.Branch{}, f.createErr
	}
	f.handles++
	return statestore.Branch{
		Name: name, DBName: name, Parent: parent, Handle: "h", Status: statestore.StatusRunning, CreatedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeBackend) Delete(ctx context.Context, pc backend.ProjectContext, branch statestore.Branch) error {
	return f.deleteErr
}

func (f *fakeBackend) List(ctx context.Context, pc backend.ProjectContext) ([]statestore.Branch, error) {
	out := make([]statestore.Branch, 0, len(pc.ExistingBranches))
	for _, b := range pc.ExistingBranches {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBackend) Start(ctx context.Context, pc backend.ProjectContext, branch statestore.Branch) (statestore.Branch, error) {
	branch.Status = statestore.StatusRunning
	return branch, nil
}

func (f *fakeBackend) Stop(ctx context.Context, pc backend.ProjectContext, branch statestore.Branch) (statestore.Branch, error) {
	branch.Status = statestore.StatusStopped
	return branch, nil
}

func (f *fakeBackend) Reset(ctx context.Context, pc backend.ProjectContext, branch statestore.Branch) (statestore.Branch, error) {
	branch.Status = statestore.StatusRunning
	return branch, nil
}

func (f *fakeBackend) Connection(ctx context.Context, pc backend.ProjectContext, branch statestore.Branch) (backend.ConnectionInfo, error) {
	return backend.ConnectionInfo{Database: branch.DBName}, nil
}

func (f *fakeBackend) Health(ctx context.Context, pc backend.ProjectContext) ([]backend.Issue, error) {
	return nil, nil
}

func (f *fakeBackend) Destroy(ctx context.Context, pc backend.ProjectContext) error { return nil }

func newTestEngine(t *testing.T, be backend.Backend) *Engine {
	t.Helper()
	fs := afero.NewMemMapFs()
	return &Engine{
		Fs:          fs,
		StatePath:   "/home/user/.config/pgbranch/local_state.yml",
		ProjectRoot: "/repo",
		Backend:     be,
		Cfg:         config.EffectiveConfig(config.Defaults()),
	}
}

func TestEngineCreateAndList(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{})

	branch, err := e.Create(context.Background(), "main", "")
	require.NoError(t, err)
	assert.Equal(t, "main", branch.Name)
	assert.Equal(t, statestore.StatusRunning, branch.Status)

	list, err := e.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "main", list[0].Name)
}

func TestEngineCreateDuplicateNameFails(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{})
	_, err := e.Create(context.Background(), "main", "")
	require.NoError(t, err)

	_, err = e.Create(context.Background(), "main", "")
	require.Error(t, err)
}

func TestEngineCreateRollsBackOnBackendError(t *testing.T) {
	be := &fakeBackend{createErr: errors.New("docker unavailable")}
	e := newTestEngine(t, be)

	_, err := e.Create(context.Background(), "main", "")
	require.Error(t, err)

	list, err := e.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list, "a failed create must not leave a dangling reservation")
}

func TestEngineCreateBlockedWhenDisabled(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{})
	e.Cfg.Git.Disabled = true

	_, err := e.Create(context.Background(), "main", "")
	require.Error(t, err)
	pe, ok := pgerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pgerr.PolicyBlocked, pe.Kind)
}

func TestEngineCreatePersistsErroredBranch(t *testing.T) {
	be := &fakeBackend{createErr: errors.New("postgres did not become ready"), createErrored: true}
	e := newTestEngine(t, be)

	_, err := e.Create(context.Background(), "main", "")
	require.Error(t, err)

	list, err := e.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, statestore.StatusErrored, list[0].Status)
}

func TestEngineDeleteRemovesBranch(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{})
	_, err := e.Create(context.Background(), "main", "")
	require.NoError(t, err)

	err = e.Delete(context.Background(), "main")
	require.NoError(t, err)

	list, err := e.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEngineDeleteRevertsStatusOnBackendError(t *testing.T) {
	be := &fakeBackend{}
	e := newTestEngine(t, be)
	_, err := e.Create(context.Background(), "main", "")
	require.NoError(t, err)

	be.deleteErr = errors.New("container busy")
	err = e.Delete(context.Background(), "main")
	require.Error(t, err)

	list, err := e.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, statestore.StatusRunning, list[0].Status)
}

func TestEngineSwitchCreatesMissingBranch(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{})
	_, err := e.Create(context.Background(), "main", "")
	require.NoError(t, err)

	branch, created, err := e.Switch(context.Background(), "feature", "main")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "main", branch.Parent)
}

func TestEngineStartStop(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{})
	_, err := e.Create(context.Background(), "main", "")
	require.NoError(t, err)

	branch, err := e.Stop(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusStopped, branch.Status)

	branch, err = e.Start(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusRunning, branch.Status)
}

func TestEngineCleanupKeepsMostRecentAndProtectsCurrent(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{})
	_, err := e.Create(context.Background(), "main", "")
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c", "current"} {
		_, err := e.Create(context.Background(), name, "main")
		require.NoError(t, err)
	}
	_, _, err = e.Switch(context.Background(), "current", "main")
	require.NoError(t, err)

	removed, err := e.Cleanup(context.Background(), 1)
	require.NoError(t, err)
	assert.NotContains(t, removed, "main")
	assert.NotContains(t, removed, "current")

	list, err := e.List(context.Background())
	require.NoError(t, err)
	names := map[string]bool{}
	for _, b := range list {
		names[b.Name] = true
	}
	assert.True(t, names["main"])
	assert.True(t, names["current"])
}

func TestEngineReconcileFlagsStuckCreating(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{createErr: errors.New("timeout mid-create")})
	_, err := e.Create(context.Background(), "main", "")
	require.Error(t, err)

	// Simulate a crash between phase 1 (reserve) and phase 2 (commit/rollback)
	// by writing a Creating entry directly, bypassing Create's own rollback.
	store, err := statestore.Load(e.Fs, e.StatePath)
	require.NoError(t, err)
	ps := store.Project(e.ProjectRoot)
	ps.Branches["main"] = statestore.Branch{Name: "main", Status: statestore.StatusCreating, CreatedAt: time.Now().UTC()}
	store.SetProject(e.ProjectRoot, ps)
	require.NoError(t, statestore.Save(e.Fs, e.StatePath, store))

	issues, err := e.Reconcile(context.Background())
	require.NoError(t, err)
	found := false
	for _, iss := range issues {
		if iss.Message == "branch main is stuck in Creating; a prior create was interrupted" {
			found = true
		}
	}
	assert.True(t, found)
}
