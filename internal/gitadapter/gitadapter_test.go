package gitadapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi"), 0o644))
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("init", &git.CommitOptions{Author: &object.Signature{Name: "t", Email: "t@example.com"}})
	require.NoError(t, err)
	return dir
}

func TestCurrentBranchDefault(t *testing.T) {
	dir := initRepo(t)
	a, err := Open(dir)
	require.NoError(t, err)
	branch, err := a.CurrentBranch()
	require.NoError(t, err)
	assert.NotEmpty(t, branch)
}

func TestDetectMainBranchConfiguredWins(t *testing.T) {
	dir := initRepo(t)
	a, err := Open(dir)
	require.NoError(t, err)
	name, err := a.DetectMainBranch("trunk")
	require.NoError(t, err)
	assert.Equal(t, "trunk", name)
}

func TestBranchContainingCommitFindsTip(t *testing.T) {
	dir := initRepo(t)
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)

	a, err := Open(dir)
	require.NoError(t, err)
	name, err := a.BranchContainingCommit(head.Hash().String())
	require.NoError(t, err)
	assert.Equal(t, head.Name().Short(), name)
}

func TestBranchContainingCommitNoMatch(t *testing.T) {
	dir := initRepo(t)
	a, err := Open(dir)
	require.NoError(t, err)
	name, err := a.BranchContainingCommit(plumbing.ZeroHash.String())
	require.NoError(t, err)
	assert.Empty(t, name)

	name, err = a.BranchContainingCommit("0123456789012345678901234567890123456789")
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestDetectMainBranchProbesCandidates(t *testing.T) {
	dir := initRepo(t)
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("develop"), head.Hash())))

	a, err := Open(dir)
	require.NoError(t, err)
	name, err := a.DetectMainBranch("")
	require.NoError(t, err)
	assert.Contains(t, []string{"main", "master", "develop"}, name)
}
