// Package dispatcher turns Git hook invocations into Lifecycle Engine
// calls, filtered by the kill-switch policy from the Config Resolver.
package dispatcher

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pgbranch/pgbranch/internal/config"
	"github.com/pgbranch/pgbranch/internal/statestore"
)

// GitEvent is one post-checkout/post-merge invocation, carrying the
// arguments Git's hook contract passes.
type GitEvent struct {
	Hook           string // "post-checkout" or "post-merge"
	OldRef         string
	NewRef         string
	BranchName     string
	IsBranchChange bool
	// CurrentBranch is the branch Git now reports as checked out, used to
	// evaluate the exclude/disabled-branch and auto-create-filter
	// kill-switches against the branch the developer is now on.
	CurrentBranch string
	// ParentHint is a best-effort candidate parent for auto-create (e.g.
	// whichever branch still points at the pre-checkout commit). Empty
	// falls back to the configured main branch.
	ParentHint string
}

// Lifecycle is the subset of *lifecycle.Engine the dispatcher drives,
// narrowed to an interface so it can be exercised without a real State
// Store or backend.
type Lifecycle interface {
	Create(ctx context.Context, name, parent string) (statestore.Branch, error)
	Switch(ctx context.Context, name, fallbackParent string) (statestore.Branch, bool, error)
	List(ctx context.Context) ([]statestore.Branch, error)
}

// Action is one Lifecycle call the dispatcher decided to make, reported for
// logging and tests.
type Action struct {
	Kind   string // "create" or "switch"
	Branch string
}

// Result is what Dispatch did and, if a kill-switch fired, why it did
// nothing.
type Result struct {
	Skipped      bool
	SkipReason   string
	Actions      []Action
	SwitchResult statestore.Branch
	Created      bool
}

// Dispatch runs the hook pipeline:
//  1. evaluate kill-switches; exit silently if any fired.
//  2. auto-create the branch if policy allows and it doesn't exist.
//  3. auto-switch to it if policy allows.
func Dispatch(ctx context.Context, cfg config.EffectiveConfig, lc Lifecycle, ev GitEvent, currentBranchDisabledEnv bool) (Result, error) {
	ks := config.EvaluateKillSwitches(cfg, ev.CurrentBranch, currentBranchDisabledEnv)
	if fired, reason := ks.Fired(); fired {
		return Result{Skipped: true, SkipReason: reason}, nil
	}
	if ev.BranchName == "" || !ev.IsBranchChange {
		return Result{}, nil
	}

	var result Result
	exists, err := branchExists(ctx, lc, ev.BranchName)
	if err != nil {
		return result, err
	}

	if cfg.Git.AutoCreateOnBranch && !exists {
		parent := ev.ParentHint
		if parent == "" || parent == ev.BranchName {
			parent = cfg.Git.MainBranch
		}
		if _, err := lc.Create(ctx, ev.BranchName, parent); err != nil {
			return result, err
		}
		result.Actions = append(result.Actions, Action{Kind: "create", Branch: ev.BranchName})
		exists = true
	}

	if cfg.Git.AutoSwitchOnBranch && exists {
		branch, created, err := lc.Switch(ctx, ev.BranchName, cfg.Git.MainBranch)
		if err != nil {
			return result, err
		}
		result.Actions = append(result.Actions, Action{Kind: "switch", Branch: ev.BranchName})
		result.SwitchResult = branch
		result.Created = created
	}

	return result, nil
}

func branchExists(ctx context.Context, lc Lifecycle, name string) (bool, error) {
	branches, err := lc.List(ctx)
	if err != nil {
		return false, err
	}
	for _, b := range branches {
		if b.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// NewLogger returns the rotating per-project log the hook-invocation
// wrapper writes to.
func NewLogger(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
}

// RunHook is the hook-invocation wrapper: it runs fn,
// logs any error to both the rotating log and stderr, and never fails the
// Git command unless PGBRANCH_STRICT_HOOKS=true.
func RunHook(logPath string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	logger := NewLogger(logPath)
	fmt.Fprintf(logger, "hook error: %v\n", err)
	logger.Close()
	fmt.Fprintf(os.Stderr, "pgbranch: hook error: %v\n", err)

	if os.Getenv("PGBRANCH_STRICT_HOOKS") == "true" {
		return err
	}
	return nil
}
