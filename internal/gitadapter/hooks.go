package gitadapter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/pgbranch/pgbranch/internal/pgerr"
)

const (
	beginMarker = "# >>> pgbranch hook: managed block, do not edit by hand >>>"
	endMarker   = "# <<< pgbranch hook <<<"
)

var managedHooks = []string{"post-checkout", "post-merge"}

// hookBody returns the shell invocation appended for the given hook name.
func hookBody(hookName, binaryPath string) string {
	switch hookName {
	case "post-checkout":
		return fmt.Sprintf(`%s hook post-checkout "$1" "$2" "$3"`, binaryPath)
	case "post-merge":
		return fmt.Sprintf(`%s hook post-merge "$1"`, binaryPath)
	default:
		return ""
	}
}

func block(hookName, binaryPath string) string {
	return beginMarker + "\n" + hookBody(hookName, binaryPath) + "\n" + endMarker + "\n"
}

// InstallHooks writes (or idempotently updates) the post-checkout and
// post-merge stubs under .git/hooks. Pre-existing hook content is preserved
// verbatim; the managed block is appended.
func InstallHooks(fsys afero.Fs, repoRoot, binaryPath string) error {
	hooksDir := filepath.Join(repoRoot, ".git", "hooks")
	if err := fsys.MkdirAll(hooksDir, 0o755); err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "install-hooks"}, err, "create hooks dir")
	}
	for _, hook := range managedHooks {
		path := filepath.Join(hooksDir, hook)
		existing, err := readIfExists(fsys, path)
		if err != nil {
			return err
		}
		if strings.Contains(existing, beginMarker) {
			continue // already installed, idempotent
		}
		var out strings.Builder
		if existing == "" {
			out.WriteString("#!/bin/sh\n")
		} else {
			out.WriteString(existing)
			if !strings.HasSuffix(existing, "\n") {
				out.WriteString("\n")
			}
		}
		out.WriteString(block(hook, binaryPath))
		if err := afero.WriteFile(fsys, path, []byte(out.String()), 0o755); err != nil {
			return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "install-hooks"}, err, "write hook %s", hook)
		}
	}
	return nil
}

// UninstallHooks removes exactly the managed block from each hook stub,
// restoring the file to its pre-install byte content. If nothing but the
// block (and the shebang pgbranch itself added) remains, the file is
// removed entirely.
func UninstallHooks(fsys afero.Fs, repoRoot string) error {
	hooksDir := filepath.Join(repoRoot, ".git", "hooks")
	for _, hook := range managedHooks {
		path := filepath.Join(hooksDir, hook)
		existing, err := readIfExists(fsys, path)
		if err != nil {
			return err
		}
		if existing == "" || !strings.Contains(existing, beginMarker) {
			continue
		}
		stripped := stripManagedBlock(existing, hook)
		if stripped == "" || stripped == "#!/bin/sh\n" {
			if err := fsys.Remove(path); err != nil {
				return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "uninstall-hooks"}, err, "remove hook %s", hook)
			}
			continue
		}
		if err := afero.WriteFile(fsys, path, []byte(stripped), 0o755); err != nil {
			return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "uninstall-hooks"}, err, "rewrite hook %s", hook)
		}
	}
	return nil
}

func stripManagedBlock(content, hook string) string {
	b := block(hook, "")
	begin := strings.Index(content, beginMarker)
	if begin < 0 {
		return content
	}
	end := strings.Index(content[begin:], endMarker)
	if end < 0 {
		return content
	}
	end = begin + end + len(endMarker)
	if end < len(content) && content[end] == '\n' {
		end++
	}
	_ = b // the exact shell body doesn't matter for stripping bounds
	return content[:begin] + content[end:]
}

func readIfExists(fsys afero.Fs, path string) (string, error) {
	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return "", pgerr.New(pgerr.IoError, pgerr.Context{Phase: "hooks"}, err, "stat %s", path)
	}
	if !exists {
		return "", nil
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return "", pgerr.New(pgerr.IoError, pgerr.Context{Phase: "hooks"}, err, "read %s", path)
	}
	return string(data), nil
}
