package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pgbranch/pgbranch/internal/config"
	"github.com/pgbranch/pgbranch/internal/dispatcher"
)

// hookCmd is the parent for the Git hook entry points the installed
// .git/hooks/post-checkout and .git/hooks/post-merge stubs invoke.
var hookCmd = &cobra.Command{
	Use:    "hook",
	Short:  "Git hook entry points invoked by the installed hook stubs",
	Hidden: true,
}

var hookPostCheckoutCmd = &cobra.Command{
	Use:    "post-checkout <old_ref> <new_ref> <branch_flag>",
	Args:   cobra.ExactArgs(3),
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGitHook(cmd, "post-checkout", args[0], args[1], args[2] == "1")
	},
}

var hookPostMergeCmd = &cobra.Command{
	Use:    "post-merge <is_squash>",
	Args:   cobra.ExactArgs(1),
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGitHook(cmd, "post-merge", "", "", true)
	},
}

// runGitHook never fails the Git command (exit code is always 0) unless
// PGBRANCH_STRICT_HOOKS=true, and errors are logged to a rotating
// per-project log as well as stderr.
func runGitHook(cmd *cobra.Command, hookName, oldRef, newRef string, isBranchChange bool) error {
	if config.SkipHooks() {
		return nil
	}

	e, err := newEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pgbranch: hook error: %v\n", err)
		if config.StrictHooks() {
			return err
		}
		return nil
	}

	logPath := filepath.Join(filepath.Dir(e.statePath), "logs", filepath.Base(e.projectRoot)+".log")
	return dispatcher.RunHook(logPath, func() error {
		return dispatchHook(cmd, e, hookName, oldRef, newRef, isBranchChange)
	})
}

func dispatchHook(cmd *cobra.Command, e *env, hookName, oldRef, newRef string, isBranchChange bool) error {
	ga, err := e.gitAdapter()
	if err != nil {
		return err
	}
	current, err := ga.CurrentBranch()
	if err != nil {
		return err
	}

	// The parent candidate for a freshly-branched name: whichever local
	// branch still points at the pre-checkout commit, if any; otherwise
	// the dispatcher falls back to the configured main branch.
	var parentHint string
	if oldRef != "" {
		parentHint, _ = ga.BranchContainingCommit(oldRef)
	}

	eng, err := e.engine(cmd.Context())
	if err != nil {
		return err
	}

	ev := dispatcher.GitEvent{
		Hook:           hookName,
		OldRef:         oldRef,
		NewRef:         newRef,
		BranchName:     current,
		IsBranchChange: isBranchChange,
		CurrentBranch:  current,
		ParentHint:     parentHint,
	}
	result, err := dispatcher.Dispatch(cmd.Context(), e.cfg, eng, ev, config.CurrentBranchDisabled())
	if err != nil {
		return err
	}
	for _, action := range result.Actions {
		if action.Kind == "switch" {
			return e.runPostCommands(cmd.Context(), eng, result.SwitchResult, cmd.OutOrStdout(), cmd.ErrOrStderr())
		}
	}
	return nil
}

func init() {
	hookCmd.AddCommand(hookPostCheckoutCmd, hookPostMergeCmd)
	rootCmd.AddCommand(hookCmd)
}
