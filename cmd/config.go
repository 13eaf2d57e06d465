package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pgbranch/pgbranch/internal/diagnostics"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration for this project",
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		e, err := newEnv()
		if err != nil {
			return err
		}
		cfg, sources, err := diagnostics.ConfigShow(e.fs, e.projectRoot)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		cmd.OutOrStdout().Write(data)
		if verbose {
			fmt.Fprintln(cmd.OutOrStdout(), "\nsources:")
			for _, s := range sources {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-40s %-10s %s\n", s.Key, s.Layer, s.Value)
			}
		}
		return nil
	},
}

func init() {
	configCmd.Flags().BoolP("verbose", "v", false, "show which config layer supplied each effective key")
	rootCmd.AddCommand(configCmd)
}
