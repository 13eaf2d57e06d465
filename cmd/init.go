package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pgbranch/pgbranch/internal/backend"
	"github.com/pgbranch/pgbranch/internal/config"
	"github.com/pgbranch/pgbranch/internal/credentials"
	"github.com/pgbranch/pgbranch/internal/gitadapter"
	"github.com/pgbranch/pgbranch/internal/pgerr"
)

// initCmd writes the committed project config (unless one already exists)
// and creates the root branch.
var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Initialise pgbranch for this repository",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backendKind, _ := cmd.Flags().GetString("backend")
		from, _ := cmd.Flags().GetString("from")
		if from != "" {
			return pgerr.New(pgerr.ConfigInvalid, pgerr.Context{Phase: "init"}, nil,
				"--from %q is not supported: importing from a URL/file/S3 archive is handled by external tooling", from)
		}
		switch backendKind {
		case backend.KindLocal, backend.KindPostgresTemplate, backend.KindNeon, backend.KindDBLab, backend.KindXata:
		default:
			return pgerr.New(pgerr.ConfigInvalid, pgerr.Context{Phase: "init"}, nil, "unknown --backend %q", backendKind)
		}

		fsys := afero.NewOsFs()
		wd, err := os.Getwd()
		if err != nil {
			return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "init"}, err, "get working directory")
		}

		path := filepath.Join(wd, config.CommittedFileName)
		exists, err := afero.Exists(fsys, path)
		if err != nil {
			return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "init"}, err, "stat %s", path)
		}
		if exists {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, leaving it untouched\n", config.CommittedFileName)
		} else {
			mainBranch := "main"
			if ga, gaErr := gitadapter.Open(wd); gaErr == nil {
				if detected, detErr := ga.DetectMainBranch(""); detErr == nil {
					mainBranch = detected
				}
			}
			fc := config.Defaults()
			fc.Backend.Kind = backendKind
			fc.Git.MainBranch = mainBranch
			data, err := yaml.Marshal(fc)
			if err != nil {
				return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "init"}, err, "marshal %s", config.CommittedFileName)
			}
			if err := afero.WriteFile(fsys, path, data, 0o644); err != nil {
				return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "init"}, err, "write %s", path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (backend=%s)\n", config.CommittedFileName, backendKind)
		}

		e, err := newEnv()
		if err != nil {
			return err
		}
		eng, err := e.engine(cmd.Context())
		if err != nil {
			return err
		}
		rootName := e.cfg.Git.MainBranch
		if rootName == "" {
			rootName = "main"
		}
		branch, err := eng.Create(cmd.Context(), rootName, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "initialised root branch %s (db=%s)\n", branch.Name, branch.DBName)

		if password := e.resolvePassword(e.cfg.Backend.Password); password != "" {
			if err := credentials.Set(e.projectRoot, password); err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "saved backend password to the OS credential store")
			}
		}
		return nil
	},
}

func init() {
	initCmd.Flags().String("backend", backend.KindLocal, "backend kind: local, postgres_template, neon, dblab, or xata")
	initCmd.Flags().String("from", "", "seed the project from an existing url, file, or s3 archive (external collaborator, not implemented here)")
	rootCmd.AddCommand(initCmd)
}
