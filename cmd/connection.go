package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgbranch/pgbranch/internal/backend"
	"github.com/pgbranch/pgbranch/internal/pgerr"
)

var connectionCmd = &cobra.Command{
	Use:   "connection <name>",
	Short: "Print connection details for a branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		e, err := newEnv()
		if err != nil {
			return err
		}
		eng, err := e.engine(cmd.Context())
		if err != nil {
			return err
		}
		info, err := eng.Connection(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return renderConnection(cmd, format, info)
	},
}

func renderConnection(cmd *cobra.Command, format string, info backend.ConnectionInfo) error {
	switch format {
	case "", "uri":
		fmt.Fprintln(cmd.OutOrStdout(), info.URI())
	case "env":
		fmt.Fprintf(cmd.OutOrStdout(), "DATABASE_HOST=%s\nDATABASE_PORT=%d\nDATABASE_NAME=%s\nDATABASE_USER=%s\nDATABASE_URL=%s\n",
			info.Host, info.Port, info.Database, info.User, info.URI())
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		return enc.Encode(info)
	default:
		return pgerr.New(pgerr.ConfigInvalid, pgerr.Context{Phase: "connection-format"}, nil, "unknown --format %q (want uri, env, or json)", format)
	}
	return nil
}

func init() {
	connectionCmd.Flags().String("format", "uri", "output format: uri, env, or json")
	rootCmd.AddCommand(connectionCmd)
}
