package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgbranch/pgbranch/internal/diagnostics"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current branch and every tracked branch",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		eng, err := e.engine(cmd.Context())
		if err != nil {
			return err
		}
		report, err := diagnostics.Status(cmd.Context(), eng, e.statePath, e.projectRoot, e.fs)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "current: %s\n", report.CurrentBranch)
		for _, b := range report.Branches {
			marker := " "
			if b.Name == report.CurrentBranch {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-30s %-10s %s\n", marker, b.Name, b.Status, b.DBName)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
