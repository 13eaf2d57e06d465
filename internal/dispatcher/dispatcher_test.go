package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgbranch/pgbranch/internal/config"
	"github.com/pgbranch/pgbranch/internal/statestore"
)

type fakeLifecycle struct {
	branches     []statestore.Branch
	createErr    error
	switchErr    error
	createCall   []string
	createParent []string
	switchCall   []string
}

func (f *fakeLifecycle) Create(ctx context.Context, name, parent string) (statestore.Branch, error) {
	f.createCall = append(f.createCall, name)
	f.createParent = append(f.createParent, parent)
	if f.createErr != nil {
		return statestore.Branch{}, f.createErr
	}
	b := statestore.Branch{Name: name, Parent: parent}
	f.branches = append(f.branches, b)
	return b, nil
}

func (f *fakeLifecycle) Switch(ctx context.Context, name, fallbackParent string) (statestore.Branch, bool, error) {
	f.switchCall = append(f.switchCall, name)
	if f.switchErr != nil {
		return statestore.Branch{}, false, f.switchErr
	}
	return statestore.Branch{Name: name}, false, nil
}

func (f *fakeLifecycle) List(ctx context.Context) ([]statestore.Branch, error) {
	return f.branches, nil
}

func baseConfig() config.EffectiveConfig {
	return config.EffectiveConfig{
		Git: config.GitPolicy{MainBranch: "main"},
	}
}

func TestDispatchSkipsWhenDisabled(t *testing.T) {
	cfg := baseConfig()
	cfg.Git.Disabled = true
	lc := &fakeLifecycle{}

	result, err := Dispatch(context.Background(), cfg, lc, GitEvent{BranchName: "feature", IsBranchChange: true}, false)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, lc.createCall)
}

func TestDispatchSkipsOnExcludedBranch(t *testing.T) {
	cfg := baseConfig()
	cfg.Git.ExcludeBranches = []string{"release/*"}
	lc := &fakeLifecycle{}

	result, err := Dispatch(context.Background(), cfg, lc, GitEvent{
		BranchName: "release/v2", IsBranchChange: true, CurrentBranch: "release/v2",
	}, false)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestDispatchAutoCreatesMissingBranch(t *testing.T) {
	cfg := baseConfig()
	cfg.Git.AutoCreateOnBranch = true
	lc := &fakeLifecycle{}

	result, err := Dispatch(context.Background(), cfg, lc, GitEvent{
		BranchName: "feature", IsBranchChange: true, CurrentBranch: "main",
	}, false)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	require.Len(t, lc.createCall, 1)
	assert.Equal(t, "feature", lc.createCall[0])
	assert.Equal(t, "main", lc.createParent[0])
}

func TestDispatchAutoCreateUsesParentHint(t *testing.T) {
	cfg := baseConfig()
	cfg.Git.AutoCreateOnBranch = true
	lc := &fakeLifecycle{}

	_, err := Dispatch(context.Background(), cfg, lc, GitEvent{
		BranchName: "feature", IsBranchChange: true, CurrentBranch: "feature", ParentHint: "develop",
	}, false)
	require.NoError(t, err)
	require.Len(t, lc.createParent, 1)
	assert.Equal(t, "develop", lc.createParent[0])
}

func TestDispatchAutoCreateIgnoresSelfParentHint(t *testing.T) {
	cfg := baseConfig()
	cfg.Git.AutoCreateOnBranch = true
	lc := &fakeLifecycle{}

	_, err := Dispatch(context.Background(), cfg, lc, GitEvent{
		BranchName: "feature", IsBranchChange: true, CurrentBranch: "feature", ParentHint: "feature",
	}, false)
	require.NoError(t, err)
	require.Len(t, lc.createParent, 1)
	assert.Equal(t, "main", lc.createParent[0])
}

func TestDispatchDoesNotRecreateExistingBranch(t *testing.T) {
	cfg := baseConfig()
	cfg.Git.AutoCreateOnBranch = true
	lc := &fakeLifecycle{branches: []statestore.Branch{{Name: "feature"}}}

	_, err := Dispatch(context.Background(), cfg, lc, GitEvent{
		BranchName: "feature", IsBranchChange: true, CurrentBranch: "main",
	}, false)
	require.NoError(t, err)
	assert.Empty(t, lc.createCall)
}

func TestDispatchAutoSwitch(t *testing.T) {
	cfg := baseConfig()
	cfg.Git.AutoSwitchOnBranch = true
	lc := &fakeLifecycle{branches: []statestore.Branch{{Name: "feature"}}}

	result, err := Dispatch(context.Background(), cfg, lc, GitEvent{
		BranchName: "feature", IsBranchChange: true, CurrentBranch: "main",
	}, false)
	require.NoError(t, err)
	require.Len(t, lc.switchCall, 1)
	assert.Equal(t, "feature", result.SwitchResult.Name)
}

func TestDispatchPropagatesLifecycleError(t *testing.T) {
	cfg := baseConfig()
	cfg.Git.AutoCreateOnBranch = true
	lc := &fakeLifecycle{createErr: errors.New("docker unavailable")}

	_, err := Dispatch(context.Background(), cfg, lc, GitEvent{
		BranchName: "feature", IsBranchChange: true, CurrentBranch: "main",
	}, false)
	require.Error(t, err)
}

func TestRunHookNeverFailsByDefault(t *testing.T) {
	t.Setenv("PGBRANCH_STRICT_HOOKS", "")
	logPath := t.TempDir() + "/hook.log"

	err := RunHook(logPath, func() error { return errors.New("boom") })
	require.NoError(t, err)
}

func TestRunHookFailsWhenStrict(t *testing.T) {
	t.Setenv("PGBRANCH_STRICT_HOOKS", "true")
	logPath := t.TempDir() + "/hook.log"

	err := RunHook(logPath, func() error { return errors.New("boom") })
	require.Error(t, err)
}
