//go:build darwin

package storage

import (
	"golang.org/x/sys/unix"
)

// apfsFSTypeName is what statfs reports for an APFS-backed mount on macOS.
const apfsFSTypeName = "apfs"

func detectAPFS(root string) bool {
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		return false
	}
	name := fstypeName(st.Fstypename[:])
	return name == apfsFSTypeName
}

func fstypeName(raw []byte) string {
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	return string(raw[:n])
}
