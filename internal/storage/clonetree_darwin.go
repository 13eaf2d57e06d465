//go:build darwin

package storage

import "golang.org/x/sys/unix"

// cloneTree clones src onto dst using clonefile(2), the syscall backing
// macOS's `cp -c` / Finder "duplicate" copy-on-write path. APFS clonefile
// natively recurses into directories, so a single call suffices.
func cloneTree(src, dst string) error {
	return unix.Clonefile(src, dst, 0)
}
