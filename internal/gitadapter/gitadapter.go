// Package gitadapter reads Git repository state (current branch, main
// branch) and installs/removes the post-checkout/post-merge hook stubs that
// drive the Event Dispatcher.
package gitadapter

import (
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/pgbranch/pgbranch/internal/pgerr"
)

// candidateMainBranches is the probe order used when no main_branch is
// configured.
var candidateMainBranches = []string{"main", "master", "develop"}

// Adapter wraps a single Git repository rooted at Path.
type Adapter struct {
	Path string
}

func Open(path string) (*Adapter, error) {
	if _, err := git.PlainOpen(path); err != nil {
		return nil, pgerr.New(pgerr.IoError, pgerr.Context{Phase: "git-open"}, err, "open git repository at %s", path)
	}
	return &Adapter{Path: path}, nil
}

// CurrentBranch returns the short name of the branch HEAD points at. An
// error is returned for a detached HEAD.
func (a *Adapter) CurrentBranch() (string, error) {
	repo, err := git.PlainOpen(a.Path)
	if err != nil {
		return "", pgerr.New(pgerr.IoError, pgerr.Context{Phase: "git-head"}, err, "open repository")
	}
	head, err := repo.Head()
	if err != nil {
		return "", pgerr.New(pgerr.IoError, pgerr.Context{Phase: "git-head"}, err, "read HEAD")
	}
	if !head.Name().IsBranch() {
		return "", pgerr.New(pgerr.IoError, pgerr.Context{Phase: "git-head"}, nil, "HEAD is detached, not on a branch")
	}
	return head.Name().Short(), nil
}

// BranchContainingCommit returns the short name of whichever local branch
// currently points at sha, or "" if none does. Git's post-checkout hook
// only passes old/new HEAD as commit SHAs, not branch names; this lets a
// caller recover the branch a new one was forked from, when its tip hasn't
// moved since.
func (a *Adapter) BranchContainingCommit(sha string) (string, error) {
	repo, err := git.PlainOpen(a.Path)
	if err != nil {
		return "", pgerr.New(pgerr.IoError, pgerr.Context{Phase: "git-branch-for-commit"}, err, "open repository")
	}
	hash := plumbing.NewHash(sha)
	if hash.IsZero() {
		return "", nil
	}
	refs, err := repo.Branches()
	if err != nil {
		return "", pgerr.New(pgerr.IoError, pgerr.Context{Phase: "git-branch-for-commit"}, err, "list branches")
	}
	var found string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Hash() == hash {
			found = ref.Name().Short()
		}
		return nil
	})
	if err != nil {
		return "", pgerr.New(pgerr.IoError, pgerr.Context{Phase: "git-branch-for-commit"}, err, "iterate branches")
	}
	return found, nil
}

// DetectMainBranch returns configured when non-empty, otherwise probes
// main/master/develop in order and falls back to whichever branch HEAD is
// on if none of the candidates exist.
func (a *Adapter) DetectMainBranch(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	repo, err := git.PlainOpen(a.Path)
	if err != nil {
		return "", pgerr.New(pgerr.IoError, pgerr.Context{Phase: "git-main-branch"}, err, "open repository")
	}
	for _, candidate := range candidateMainBranches {
		ref := plumbing.NewBranchReferenceName(candidate)
		if _, err := repo.Reference(ref, false); err == nil {
			return candidate, nil
		} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", pgerr.New(pgerr.IoError, pgerr.Context{Phase: "git-main-branch"}, err, "probe branch %s", candidate)
		}
	}
	return a.CurrentBranch()
}
