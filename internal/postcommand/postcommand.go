// Package postcommand runs the queue of shell commands and file-replace
// actions that fire after create/switch/reset.
package postcommand

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/pgbranch/pgbranch/internal/config"
	"github.com/pgbranch/pgbranch/internal/pgerr"
)

// Vars supplies the values substituted for {placeholder} template
// variables in post-command strings.
type Vars struct {
	BranchName string
	DBName     string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	TemplateDB string
	Prefix     string
}

// replacer builds the {placeholder} -> value substitution table.
func (v Vars) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"{branch_name}", v.BranchName,
		"{db_name}", v.DBName,
		"{db_host}", v.DBHost,
		"{db_port}", strconv.Itoa(v.DBPort),
		"{db_user}", v.DBUser,
		"{db_password}", v.DBPassword,
		"{template_db}", v.TemplateDB,
		"{prefix}", v.Prefix,
	)
}

func (v Vars) expand(s string) string {
	return v.replacer().Replace(s)
}

// Engine runs a post-command queue rooted at WorkingDir, streaming command
// output to Stdout/Stderr.
type Engine struct {
	Fs         afero.Fs
	WorkingDir string
	Stdout     io.Writer
	Stderr     io.Writer
}

// Run executes items in order against vars: expand template variables,
// evaluate the condition, then dispatch to the replace or command
// handler. A failing command aborts the remaining queue unless
// continue_on_error is set; condition evaluation errors are treated as
// "condition not met" rather than aborting the queue.
func (e *Engine) Run(ctx context.Context, items []config.PostCommandItem, vars Vars) error {
	for _, item := range items {
		switch {
		case item.Replace != nil:
			if err := e.runReplace(vars.expandReplace(*item.Replace)); err != nil {
				return err
			}
		case item.Command != nil:
			spec := vars.expandCommand(*item.Command)
			met, err := e.evaluateCondition(ctx, spec.Condition)
			if err != nil || !met {
				continue
			}
			if err := e.runCommand(ctx, spec); err != nil {
				if spec.ContinueOnError {
					continue
				}
				return err
			}
		case item.Raw != "":
			if err := e.runCommand(ctx, config.CommandSpec{Command: vars.expand(item.Raw)}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v Vars) expandReplace(r config.ReplaceSpec) config.ReplaceSpec {
	r.File = v.expand(r.File)
	r.Pattern = v.expand(r.Pattern)
	r.Replacement = v.expand(r.Replacement)
	return r
}

func (v Vars) expandCommand(c config.CommandSpec) config.CommandSpec {
	c.Command = v.expand(c.Command)
	c.WorkingDir = v.expand(c.WorkingDir)
	c.Condition = v.expand(c.Condition)
	if c.Environment != nil {
		expanded := make(map[string]string, len(c.Environment))
		for k, val := range c.Environment {
			expanded[v.expand(k)] = v.expand(val)
		}
		c.Environment = expanded
	}
	return c
}

// evaluateCondition supports the file_exists:, env:, and command:
// predicates. An absent condition is always true.
func (e *Engine) evaluateCondition(ctx context.Context, condition string) (bool, error) {
	if condition == "" {
		return true, nil
	}
	switch {
	case strings.HasPrefix(condition, "file_exists:"):
		path := strings.TrimPrefix(condition, "file_exists:")
		return afero.Exists(e.Fs, e.resolvePath(path))
	case strings.HasPrefix(condition, "env:"):
		name := strings.TrimPrefix(condition, "env:")
		return os.Getenv(name) != "", nil
	case strings.HasPrefix(condition, "command:"):
		expr := strings.TrimPrefix(condition, "command:")
		cmd := exec.CommandContext(ctx, "sh", "-c", expr)
		cmd.Dir = e.WorkingDir
		return cmd.Run() == nil, nil
	default:
		return false, pgerr.New(pgerr.ConfigInvalid, pgerr.Context{Phase: "postcommand-condition"}, nil, "unrecognised condition %q", condition)
	}
}

func (e *Engine) resolvePath(path string) string {
	if e.WorkingDir == "" || isAbs(path) {
		return path
	}
	return e.WorkingDir + string(os.PathSeparator) + path
}

func isAbs(path string) bool {
	return strings.HasPrefix(path, "/") || strings.HasPrefix(path, string(os.PathSeparator))
}

// runReplace creates the file from the replacement when allowed, or
// substitutes every match of pattern in the existing file's content.
func (e *Engine) runReplace(r config.ReplaceSpec) error {
	path := e.resolvePath(r.File)
	exists, err := afero.Exists(e.Fs, path)
	if err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "postcommand-replace"}, err, "stat %s", path)
	}
	if !exists {
		if !r.CreateIfMissing {
			return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "postcommand-replace"}, nil, "%s does not exist and create_if_missing is false", path)
		}
		return e.writeFile(path, []byte(r.Replacement))
	}

	data, err := afero.ReadFile(e.Fs, path)
	if err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "postcommand-replace"}, err, "read %s", path)
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return pgerr.New(pgerr.ConfigInvalid, pgerr.Context{Phase: "postcommand-replace"}, err, "compile pattern %q", r.Pattern)
	}
	updated := re.ReplaceAll(data, []byte(r.Replacement))
	return e.writeFile(path, updated)
}

func (e *Engine) writeFile(path string, data []byte) error {
	tmp := path + ".pgbranch-tmp"
	if err := afero.WriteFile(e.Fs, tmp, data, 0o644); err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "postcommand-replace"}, err, "write %s", tmp)
	}
	if err := e.Fs.Rename(tmp, path); err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "postcommand-replace"}, err, "rename into place %s", path)
	}
	return nil
}

// runCommand spawns spec.Command under sh -c with the merged environment,
// streaming output to Stdout/Stderr.
func (e *Engine) runCommand(ctx context.Context, spec config.CommandSpec) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", spec.Command)
	dir := e.WorkingDir
	if spec.WorkingDir != "" {
		dir = e.resolvePath(spec.WorkingDir)
	}
	cmd.Dir = dir
	cmd.Env = mergeEnv(os.Environ(), spec.Environment)

	var stderr bytes.Buffer
	cmd.Stdout = e.stdout()
	cmd.Stderr = io.MultiWriter(e.stderr(), &stderr)

	if err := cmd.Run(); err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "postcommand-exec"}, err, "command %q failed: %s", spec.Command, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (e *Engine) stdout() io.Writer {
	if e.Stdout != nil {
		return e.Stdout
	}
	return io.Discard
}

func (e *Engine) stderr() io.Writer {
	if e.Stderr != nil {
		return e.Stderr
	}
	return io.Discard
}

func mergeEnv(base []string, overrides map[string]string) []string {
	env := append([]string{}, base...)
	for k, v := range overrides {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
