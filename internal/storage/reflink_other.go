//go:build !linux

package storage

// probeReflink is unavailable outside Linux: FICLONE is a Linux-specific
// ioctl (Btrfs, XFS with reflink=1).
func probeReflink(root string) bool {
	return false
}

func reflinkCopyFile(src, dst string) error {
	panic("reflink copy is unsupported on this platform")
}
