package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgbranch/pgbranch/internal/credentials"
	"github.com/pgbranch/pgbranch/internal/pgerr"
	"github.com/pgbranch/pgbranch/internal/statestore"
)

// rootBranch returns the project's root (parentless) branch, if any.
func rootBranch(branches []statestore.Branch) (statestore.Branch, bool) {
	for _, b := range branches {
		if b.IsRoot() {
			return b, true
		}
	}
	return statestore.Branch{}, false
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new branch database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("from")
		e, err := newEnv()
		if err != nil {
			return err
		}
		eng, err := e.engine(cmd.Context())
		if err != nil {
			return err
		}
		branch, err := eng.Create(cmd.Context(), args[0], parent)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created branch %s (db=%s)\n", branch.Name, branch.DBName)
		return e.runPostCommands(cmd.Context(), eng, branch, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a branch database",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		eng, err := e.engine(cmd.Context())
		if err != nil {
			return err
		}
		if err := eng.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted branch %s\n", args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List branches tracked for this project",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		eng, err := e.engine(cmd.Context())
		if err != nil {
			return err
		}
		branches, err := eng.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, b := range branches {
			fmt.Fprintf(cmd.OutOrStdout(), "%-30s %-10s %s\n", b.Name, b.Status, b.DBName)
		}
		return nil
	},
}

var switchCmd = &cobra.Command{
	Use:   "switch [name]",
	Short: "Switch the current branch, creating it if missing",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("parent")
		useTemplate, _ := cmd.Flags().GetBool("template")
		e, err := newEnv()
		if err != nil {
			return err
		}
		eng, err := e.engine(cmd.Context())
		if err != nil {
			return err
		}

		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" || useTemplate {
			branches, err := eng.List(cmd.Context())
			if err != nil {
				return err
			}
			root, ok := rootBranch(branches)
			if !ok {
				return pgerr.New(pgerr.ParentMissing, pgerr.Context{Phase: "switch"}, nil, "project has no root branch yet; run init first")
			}
			name = root.Name
		}

		branch, created, err := eng.Switch(cmd.Context(), name, parent)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "created and switched to %s\n", branch.Name)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "switched to %s\n", branch.Name)
		}
		return e.runPostCommands(cmd.Context(), eng, branch, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

var startCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Start a stopped branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		eng, err := e.engine(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := eng.Start(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "started %s\n", args[0])
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Stop a running branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		eng, err := e.engine(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := eng.Stop(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", args[0])
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <name>",
	Short: "Reset a branch's data back to its parent's current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		eng, err := e.engine(cmd.Context())
		if err != nil {
			return err
		}
		branch, err := eng.Reset(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", args[0])
		return e.runPostCommands(cmd.Context(), eng, branch, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Tear down every branch for this project and forget its state",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force && !nonInteractive {
			if !confirm(cmd, "this removes every branch for this project. Continue?") {
				return pgerr.New(pgerr.UserAborted, pgerr.Context{Phase: "destroy"}, nil, "aborted by user")
			}
		}
		e, err := newEnv()
		if err != nil {
			return err
		}
		eng, err := e.engine(cmd.Context())
		if err != nil {
			return err
		}
		if err := eng.Destroy(cmd.Context()); err != nil {
			return err
		}
		if err := credentials.Delete(e.projectRoot); err != nil && !errors.Is(err, credentials.ErrNotFound) {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: failed to erase stored backend password:", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "destroyed all branches")
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete the oldest non-current branches past --max-count",
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetInt("max-count")
		e, err := newEnv()
		if err != nil {
			return err
		}
		eng, err := e.engine(cmd.Context())
		if err != nil {
			return err
		}
		removed, err := eng.Cleanup(cmd.Context(), keep)
		if err != nil {
			return err
		}
		for _, name := range removed {
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", name)
		}
		return nil
	},
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", prompt)
	var answer string
	fmt.Fscanln(cmd.InOrStdin(), &answer)
	return answer == "y" || answer == "yes"
}

func init() {
	createCmd.Flags().String("from", "", "parent branch to clone from (defaults to the project root)")
	switchCmd.Flags().String("parent", "", "parent branch to use if the target branch must be created")
	switchCmd.Flags().Bool("template", false, "switch to the project's root/template branch")
	cleanupCmd.Flags().Int("max-count", 5, "number of most-recently-created non-current branches to retain")
	destroyCmd.Flags().Bool("force", false, "skip the interactive confirmation prompt")

	rootCmd.AddCommand(createCmd, deleteCmd, listCmd, switchCmd, startCmd, stopCmd, resetCmd, destroyCmd, cleanupCmd)
}
