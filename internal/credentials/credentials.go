// Package credentials stores per-project backend passwords in the OS
// native credential store (macOS Keychain, Windows Credential Manager,
// Linux Secret Service), so a branch's database password need not sit in
// plaintext in local_state.yml.
package credentials

import (
	"bytes"
	"errors"
	"os"

	"github.com/zalando/go-keyring"
)

const namespace = "pgbranch"

// ErrNotFound reports that no credential is stored for project.
var ErrNotFound = keyring.ErrNotFound

// Get retrieves the stored backend password for project (a canonicalised
// repository root).
func Get(project string) (string, error) {
	if err := assertKeyringSupported(); err != nil {
		return "", err
	}
	return keyring.Get(namespace, project)
}

// Set stores password for project, overwriting any existing entry.
func Set(project, password string) error {
	if err := assertKeyringSupported(); err != nil {
		return err
	}
	return keyring.Set(namespace, project, password)
}

// Delete erases the stored password for project, called when a project is
// torn down so no stale credential outlives its branches.
func Delete(project string) error {
	if err := assertKeyringSupported(); err != nil {
		return err
	}
	return keyring.Delete(namespace, project)
}

func assertKeyringSupported() error {
	// Suggested check: https://github.com/microsoft/WSL/issues/423
	if f, err := os.ReadFile("/proc/sys/kernel/osrelease"); err == nil && bytes.Contains(f, []byte("WSL")) {
		return errors.New("keyring is not supported on WSL")
	}
	return nil
}
