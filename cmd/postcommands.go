package cmd

import (
	"context"
	"io"

	"github.com/pgbranch/pgbranch/internal/lifecycle"
	"github.com/pgbranch/pgbranch/internal/postcommand"
	"github.com/pgbranch/pgbranch/internal/statestore"
)

// runPostCommands executes the configured post-command queue for branch.
// It fires after create, switch, and reset, and skips the root branch
// unless run_post_commands_on_root is set. A failing item aborts the
// remaining queue but leaves the branch itself intact.
func (e *env) runPostCommands(ctx context.Context, eng *lifecycle.Engine, branch statestore.Branch, stdout, stderr io.Writer) error {
	items := e.cfg.Behavior.PostCommands
	if len(items) == 0 {
		return nil
	}
	if branch.IsRoot() && !e.cfg.Behavior.RunPostCommandsOnRoot {
		return nil
	}

	info, err := eng.Connection(ctx, branch.Name)
	if err != nil {
		return err
	}
	templateDB := ""
	if branches, listErr := eng.List(ctx); listErr == nil {
		if root, ok := rootBranch(branches); ok {
			templateDB = root.DBName
		}
	}

	pce := &postcommand.Engine{
		Fs:         e.fs,
		WorkingDir: e.projectRoot,
		Stdout:     stdout,
		Stderr:     stderr,
	}
	return pce.Run(ctx, items, postcommand.Vars{
		BranchName: branch.Name,
		DBName:     info.Database,
		DBHost:     info.Host,
		DBPort:     info.Port,
		DBUser:     info.User,
		DBPassword: info.Password,
		TemplateDB: templateDB,
		Prefix:     e.cfg.Naming.Prefix,
	})
}
