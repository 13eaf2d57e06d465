package storage

import "context"

// Detect tries each strategy in priority order: APFS, ZFS, Reflink,
// FullCopy. zfsSeed is the optional PGBRANCH_ZFS_DATASET override.
func Detect(ctx context.Context, root, zfsSeed string) Driver {
	if detectAPFS(root) {
		return APFSDriver{}
	}
	if d, ok := DetectZFS(ctx, root, zfsSeed); ok {
		return d
	}
	if probeReflink(root) {
		return ReflinkDriver{}
	}
	return FullCopyDriver{}
}
