package statestore

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := Load(fsys, "/home/user/.config/pgbranch/local_state.yml")
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, s.Version)
	assert.Empty(t, s.Projects)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	path := "/home/user/.config/pgbranch/local_state.yml"
	s := &Store{Projects: map[string]ProjectState{}}
	s.SetProject("/repo", ProjectState{
		BackendKind:   "local",
		CurrentBranch: "main",
		Branches: map[string]Branch{
			"main": {Name: "main", DBName: "main", Status: StatusRunning, CreatedAt: time.Now().UTC().Truncate(time.Second)},
		},
	})
	require.NoError(t, Save(fsys, path, s))

	loaded, err := Load(fsys, path)
	require.NoError(t, err)
	p := loaded.Project("/repo")
	assert.Equal(t, "local", p.BackendKind)
	assert.Equal(t, "main", p.CurrentBranch)
	assert.Contains(t, p.Branches, "main")
}

func TestLoadIncompatibleVersion(t *testing.T) {
	fsys := afero.NewMemMapFs()
	path := "/state.yml"
	require.NoError(t, afero.WriteFile(fsys, path, []byte("version: 999\nprojects: {}\n"), 0o644))
	_, err := Load(fsys, path)
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	fsys := afero.NewMemMapFs()
	path := "/state.yml"
	require.NoError(t, afero.WriteFile(fsys, path, []byte("not: [valid"), 0o644))
	_, err := Load(fsys, path)
	assert.Error(t, err)
}

func TestProjectReturnsEmptyBranchesWhenAbsent(t *testing.T) {
	s := &Store{}
	p := s.Project("/missing")
	assert.NotNil(t, p.Branches)
	assert.Empty(t, p.Branches)
}
