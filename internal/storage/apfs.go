package storage

import (
	"context"
	"os"

	"github.com/pgbranch/pgbranch/internal/pgerr"
)

// APFSDriver clones via macOS's native copy-on-write clonefile(2), exposed
// through cloneTree (platform-specific).
type APFSDriver struct{}

func (APFSDriver) Strategy() Strategy { return APFS }

func (APFSDriver) Clone(ctx context.Context, src, dst string) error {
	if err := ensureQuiesced(src); err != nil {
		return err
	}
	if err := cloneTree(src, dst); err != nil {
		return pgerr.New(pgerr.StorageUnavailable, pgerr.Context{Phase: "storage-clone"}, err, "apfs clone %s -> %s", src, dst)
	}
	return nil
}

func (APFSDriver) Destroy(ctx context.Context, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "storage-destroy"}, err, "remove %s", dst)
	}
	return nil
}

func (d APFSDriver) Reset(ctx context.Context, dst, src string) error {
	if err := d.Destroy(ctx, dst); err != nil {
		return err
	}
	return d.Clone(ctx, src, dst)
}
