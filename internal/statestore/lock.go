package statestore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/pgbranch/pgbranch/internal/pgerr"
)

// Lock is a per-project exclusive (or shared) OS file lock on the state
// file: mutating ops serialise per project, read-only ops take a shared
// lock, and two concurrent mutations on the same project never both
// proceed.
type Lock struct {
	fl *flock.Flock
}

// NewLock opens (without acquiring) the lock guarding path's state file.
// The state file's directory is created if missing, so the lock file can
// be opened on a first run; a failure to create it surfaces from Acquire.
func NewLock(path string) *Lock {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	return &Lock{fl: flock.New(path + ".lock")}
}

// Acquire takes the exclusive lock, blocking up to ctx's deadline.
func (l *Lock) Acquire(ctx context.Context) error {
	ok, err := l.fl.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "lock"}, err, "acquire project lock")
	}
	if !ok {
		return pgerr.New(pgerr.Timeout, pgerr.Context{Phase: "lock"}, nil, "timed out waiting for project lock")
	}
	return nil
}

// AcquireShared takes the shared (read-only) lock.
func (l *Lock) AcquireShared(ctx context.Context) error {
	ok, err := l.fl.TryRLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "lock"}, err, "acquire shared project lock")
	}
	if !ok {
		return pgerr.New(pgerr.Timeout, pgerr.Context{Phase: "lock"}, nil, "timed out waiting for shared project lock")
	}
	return nil
}

// Release drops whichever lock is held.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
