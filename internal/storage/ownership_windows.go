//go:build windows

package storage

import "io/fs"

// preserveOwnership is a no-op on Windows, which has no POSIX uid/gid model.
func preserveOwnership(dst string, info fs.FileInfo) {}
