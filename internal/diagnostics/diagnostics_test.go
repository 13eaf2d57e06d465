package diagnostics

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgbranch/pgbranch/internal/backend"
	"github.com/pgbranch/pgbranch/internal/statestore"
)

type fakeEngine struct {
	branches []statestore.Branch
	issues   []backend.Issue
	purged   []string
}

func (f *fakeEngine) List(ctx context.Context) ([]statestore.Branch, error) {
	return f.branches, nil
}

func (f *fakeEngine) Reconcile(ctx context.Context) ([]backend.Issue, error) {
	return f.issues, nil
}

func (f *fakeEngine) PurgeStuck(ctx context.Context) ([]string, error) {
	return f.purged, nil
}

func TestDoctorReportsWithoutFixing(t *testing.T) {
	eng := &fakeEngine{
		issues: []backend.Issue{{Message: "branch feature is stuck in Creating; a prior create was interrupted"}},
		purged: []string{"feature"},
	}

	report, err := Doctor(context.Background(), eng, false)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.True(t, report.Findings[0].Fixable)
	assert.Empty(t, report.Fixed)
}

func TestDoctorFixesWhenRequested(t *testing.T) {
	eng := &fakeEngine{
		issues: []backend.Issue{{Message: "branch feature is stuck in Deleting; a prior delete was interrupted"}},
		purged: []string{"feature"},
	}

	report, err := Doctor(context.Background(), eng, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"feature"}, report.Fixed)
}

func TestDoctorNonFixableIssue(t *testing.T) {
	eng := &fakeEngine{issues: []backend.Issue{{Message: "neon API ping failed: timeout"}}}

	report, err := Doctor(context.Background(), eng, false)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.False(t, report.Findings[0].Fixable)
}

func TestStatusReturnsCurrentBranchAndList(t *testing.T) {
	fs := afero.NewMemMapFs()
	statePath := "/home/user/.config/pgbranch/local_state.yml"
	store := &statestore.Store{
		Version: statestore.CurrentSchemaVersion,
		Projects: map[string]statestore.ProjectState{
			"/repo": {CurrentBranch: "feature", Branches: map[string]statestore.Branch{"main": {Name: "main"}}},
		},
	}
	require.NoError(t, statestore.Save(fs, statePath, store))

	eng := &fakeEngine{branches: []statestore.Branch{{Name: "main"}}}
	report, err := Status(context.Background(), eng, statePath, "/repo", fs)
	require.NoError(t, err)
	assert.Equal(t, "feature", report.CurrentBranch)
	require.Len(t, report.Branches, 1)
}
