package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/docker/client"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pgbranch/pgbranch/internal/backend"
	"github.com/pgbranch/pgbranch/internal/config"
	"github.com/pgbranch/pgbranch/internal/container"
	"github.com/pgbranch/pgbranch/internal/credentials"
	"github.com/pgbranch/pgbranch/internal/gitadapter"
	"github.com/pgbranch/pgbranch/internal/lifecycle"
	"github.com/pgbranch/pgbranch/internal/pgerr"
	"github.com/pgbranch/pgbranch/internal/statestore"
	"github.com/pgbranch/pgbranch/internal/storage"
)

var (
	jsonOutput     bool
	nonInteractive bool
	projectName    string
)

var rootCmd = &cobra.Command{
	Use:           "pgbranch",
	Short:         "Give every Git branch an isolated PostgreSQL database",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI, rendering errors either as a single-line
// cause-and-hint (interactive) or the stable {ok:false, error:{...}} JSON
// envelope.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if jsonOutput {
			data, encErr := json.Marshal(pgerr.ToJSON(err))
			if encErr == nil {
				fmt.Println(string(data))
			}
		} else {
			fmt.Fprintln(os.Stderr, err.Error())
			if pe, ok := pgerr.As(err); ok && pe.Hint != "" {
				fmt.Fprintln(os.Stderr, "hint:", pe.Hint)
			}
		}
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&jsonOutput, "json", false, "emit a single JSON document instead of human-readable output")
	flags.BoolVar(&nonInteractive, "non-interactive", false, "suppress prompts and use defaults")
	flags.StringVarP(&projectName, "project", "d", "", "logical project name, for repos with multiple configured projects")
	viper.SetEnvPrefix("PGBRANCH")
	viper.AutomaticEnv()
}

// env is the ambient process environment wiring: working directory,
// filesystem, and derived state/config paths. Every command builds one
// via newEnv() as its first step.
type env struct {
	fs          afero.Fs
	projectRoot string
	statePath   string
	cfg         config.EffectiveConfig
	sources     []config.SourceEntry
}

func newEnv() (*env, error) {
	fsys := afero.NewOsFs()
	wd, err := os.Getwd()
	if err != nil {
		return nil, pgerr.New(pgerr.IoError, pgerr.Context{Phase: "cmd-init"}, err, "get working directory")
	}
	root, err := statestore.CanonicalRoot(wd)
	if err != nil {
		return nil, pgerr.New(pgerr.IoError, pgerr.Context{Phase: "cmd-init"}, err, "canonicalise project root")
	}

	cfg, sources, err := config.Resolve(fsys, wd)
	if err != nil {
		return nil, err
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, pgerr.New(pgerr.IoError, pgerr.Context{Phase: "cmd-init"}, err, "resolve user config directory")
	}
	statePath := configDir + "/pgbranch/local_state.yml"
	if cfg.Backend.DataRoot == "" {
		cfg.Backend.DataRoot = configDir + "/pgbranch/data/" + filepath.Base(root)
	}

	return &env{fs: fsys, projectRoot: root, statePath: statePath, cfg: cfg, sources: sources}, nil
}

// resolvePassword returns the backend password to actually connect with:
// an explicit PGBRANCH_DATABASE_PASSWORD always wins (it's already folded
// into configured by config.Resolve's env layer); otherwise a password
// saved in the OS credential store by `init` overrides whatever plaintext
// value the committed/local YAML carries, falling back to that plaintext
// value if neither applies.
func (e *env) resolvePassword(configured string) string {
	if os.Getenv("PGBRANCH_DATABASE_PASSWORD") != "" {
		return configured
	}
	if stored, err := credentials.Get(e.projectRoot); err == nil {
		return stored
	}
	return configured
}

// buildBackend resolves the configured backend kind into a concrete
// backend.Backend, wiring the Docker client + Storage Driver for Local and
// a pgx connection for PostgresTemplate. The remote backends (Neon, DBLab,
// Xata) need a provider-specific backend.RemoteClient this binary does not
// ship; selecting one of those kinds fails clearly instead of silently
// no-opping.
func (e *env) buildBackend(ctx context.Context) (backend.Backend, error) {
	remoteUnavailable := func() (backend.Backend, error) {
		return nil, pgerr.New(pgerr.ConfigInvalid, pgerr.Context{Phase: "backend-remote"}, nil,
			"backend %q requires a provider API client that this build does not ship", e.cfg.Backend.Kind)
	}
	registry := backend.Registry{
		backend.KindLocal: func() (backend.Backend, error) {
			cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
			if err != nil {
				return nil, pgerr.New(pgerr.BackendUnavailable, pgerr.Context{Phase: "backend-local"}, err, "connect to Docker daemon")
			}
			driver := storage.Detect(ctx, e.cfg.Backend.DataRoot, os.Getenv("PGBRANCH_ZFS_DATASET"))
			return &backend.Local{
				Storage:    driver,
				Containers: container.New(cli),
				Host:       "127.0.0.1",
				DBPassword: e.resolvePassword(e.cfg.Backend.Password),
			}, nil
		},
		backend.KindPostgresTemplate: func() (backend.Backend, error) {
			return &backend.PostgresTemplate{
				Host: e.cfg.Backend.Host, Port: e.cfg.Backend.Port,
				User: e.cfg.Backend.User, Password: e.resolvePassword(e.cfg.Backend.Password),
			}, nil
		},
		backend.KindNeon:  remoteUnavailable,
		backend.KindDBLab: remoteUnavailable,
		backend.KindXata:  remoteUnavailable,
	}

	kind := e.cfg.Backend.Kind
	if kind == "" {
		kind = backend.KindLocal
	}
	be, err := registry.Build(kind)
	if err != nil {
		return nil, pgerr.New(pgerr.ConfigInvalid, pgerr.Context{Phase: "backend-select"}, err, "unknown backend kind %q", kind)
	}
	return be, nil
}

func (e *env) engine(ctx context.Context) (*lifecycle.Engine, error) {
	be, err := e.buildBackend(ctx)
	if err != nil {
		return nil, err
	}
	return &lifecycle.Engine{
		Fs: e.fs, StatePath: e.statePath, ProjectRoot: e.projectRoot,
		Backend: be, Cfg: e.cfg,
	}, nil
}

func (e *env) gitAdapter() (*gitadapter.Adapter, error) {
	return gitadapter.Open(e.projectRoot)
}
