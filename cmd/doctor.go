package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgbranch/pgbranch/internal/diagnostics"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Enumerate inconsistencies between state, Git, and the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		fix, _ := cmd.Flags().GetBool("fix")
		e, err := newEnv()
		if err != nil {
			return err
		}
		eng, err := e.engine(cmd.Context())
		if err != nil {
			return err
		}
		report, err := diagnostics.Doctor(cmd.Context(), eng, fix)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
		}
		if len(report.Findings) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no issues found")
			return nil
		}
		for _, f := range report.Findings {
			tag := "  "
			if f.Fixable {
				tag = "[fixable]"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", tag, f.Message)
		}
		for _, name := range report.Fixed {
			fmt.Fprintf(cmd.OutOrStdout(), "fixed: purged stuck entry %s\n", name)
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().Bool("fix", false, "repair fixable issues (purges branches stuck in Creating/Deleting)")
	rootCmd.AddCommand(doctorCmd)
}
