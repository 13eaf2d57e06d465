//go:build !windows

package storage

import (
	"io/fs"
	"os"
	"syscall"
)

// preserveOwnership copies the source file's uid/gid onto dst, best-effort
// (ignored when the caller lacks permission, e.g. running unprivileged).
func preserveOwnership(dst string, info fs.FileInfo) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	_ = os.Chown(dst, int(stat.Uid), int(stat.Gid))
}
