package storage

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pgbranch/pgbranch/internal/pgerr"
)

// FullCopyDriver is the universal fallback: a recursive byte copy
// preserving permissions (and, on POSIX, ownership).
type FullCopyDriver struct{}

func (FullCopyDriver) Strategy() Strategy { return FullCopy }

func (FullCopyDriver) Clone(ctx context.Context, src, dst string) error {
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
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFilePreserving(path, target, info)
	})
	if err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "storage-clone"}, err, "full copy %s -> %s", src, dst)
	}
	return nil
}

func (FullCopyDriver) Destroy(ctx context.Context, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "storage-destroy"}, err, "remove %s", dst)
	}
	return nil
}

func (f FullCopyDriver) Reset(ctx context.Context, dst, src string) error {
	if err := f.Destroy(ctx, dst); err != nil {
		return err
	}
	return f.Clone(ctx, src, dst)
}

func copyFilePreserving(src, dst string, info fs.FileInfo) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()
	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer dstFile.Close()
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}
	preserveOwnership(dst, info)
	return nil
}
