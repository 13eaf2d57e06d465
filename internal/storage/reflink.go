package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pgbranch/pgbranch/internal/pgerr"
)

// ReflinkDriver clones via FICLONE-backed copy-on-write on Btrfs or
// reflink-capable XFS.
type ReflinkDriver struct{}

func (ReflinkDriver) Strategy() Strategy { return Reflink }

func (ReflinkDriver) Clone(ctx context.Context, src, dst string) error {
	if err := ensureQuiesced(src); err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "storage-clone"}, err, "mkdir %s", dst)
	}
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode())
		}
		return reflinkCopyFile(path, target)
	})
	if err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "storage-clone"}, err, "reflink clone %s -> %s", src, dst)
	}
	return nil
}

func (ReflinkDriver) Destroy(ctx context.Context, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "storage-destroy"}, err, "remove %s", dst)
	}
	return nil
}

func (r ReflinkDriver) Reset(ctx context.Context, dst, src string) error {
	if err := r.Destroy(ctx, dst); err != nil {
		return err
	}
	return r.Clone(ctx, src, dst)
}
