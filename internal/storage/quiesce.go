package storage

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pgbranch/pgbranch/internal/pgerr"
)

// writeActivityWindow is how recently a WAL segment may have been touched
// before a clone source is considered still-active.
const writeActivityWindow = 500 * time.Millisecond

// ensureQuiesced is the best-effort non-quiesced-source check from the
// storage contract: a postmaster that is still writing keeps touching
// pg_wal, so a WAL segment modified within the last few hundred
// milliseconds means the caller skipped the pause step. A missing or empty
// pg_wal (not yet initialised, or not a postgres data dir at all) passes.
func ensureQuiesced(src string) error {
	entries, err := os.ReadDir(filepath.Join(src, "pg_wal"))
	if err != nil {
		return nil
	}
	cutoff := time.Now().Add(-writeActivityWindow)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			return pgerr.New(pgerr.SourceBusy, pgerr.Context{Phase: "storage-clone"}, nil,
				"%s has WAL activity within the last %s; pause or stop postgres before cloning", src, writeActivityWindow)
		}
	}
	return nil
}
