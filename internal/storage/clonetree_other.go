//go:build !darwin

package storage

import "errors"

// cloneTree is unavailable outside Darwin: clonefile(2) is macOS-specific.
func cloneTree(src, dst string) error {
	return errors.New("apfs clonefile is only available on darwin")
}
