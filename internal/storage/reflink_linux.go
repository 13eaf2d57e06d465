//go:build linux

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// probeReflink attempts a reflink copy of a small probe file to determine
// whether root's filesystem supports FICLONE (Btrfs, or XFS mounted with
// reflink support).
func probeReflink(root string) bool {
	srcPath := root + "/.pgbranch-reflink-probe-src"
	dstPath := root + "/.pgbranch-reflink-probe-dst"
	defer os.Remove(srcPath)
	defer os.Remove(dstPath)

	src, err := os.Create(srcPath)
	if err != nil {
		return false
	}
	if _, err := src.WriteString("pgbranch-reflink-probe"); err != nil {
		src.Close()
		return false
	}
	src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return false
	}
	defer dst.Close()

	srcFile, err := os.Open(srcPath)
	if err != nil {
		return false
	}
	defer srcFile.Close()

	err = unix.IoctlFileClone(int(dst.Fd()), int(srcFile.Fd()))
	return err == nil
}

func reflinkCopyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()
	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()
	return unix.IoctlFileClone(int(dstFile.Fd()), int(srcFile.Fd()))
}
