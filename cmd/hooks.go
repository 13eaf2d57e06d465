package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgbranch/pgbranch/internal/gitadapter"
)

var installHooksCmd = &cobra.Command{
	Use:   "install-hooks",
	Short: "Install the post-checkout/post-merge Git hook stubs",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		self, err := os.Executable()
		if err != nil {
			self = "pgbranch"
		}
		if err := gitadapter.InstallHooks(e.fs, e.projectRoot, self); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "installed post-checkout and post-merge hooks")
		return nil
	},
}

var uninstallHooksCmd = &cobra.Command{
	Use:   "uninstall-hooks",
	Short: "Remove the managed Git hook blocks installed by install-hooks",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		if err := gitadapter.UninstallHooks(e.fs, e.projectRoot); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "uninstalled pgbranch Git hooks")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installHooksCmd, uninstallHooksCmd)
}
