package storage

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pgbranch/pgbranch/internal/pgerr"
)

// ZFSDriver implements the Driver interface using `zfs`/`zpool` CLI calls
// against a dataset whose mountpoint is an ancestor of the data root.
type ZFSDriver struct {
	dataset string
}

func (d *ZFSDriver) Strategy() Strategy { return ZFS }
func (d *ZFSDriver) Dataset() string    { return d.dataset }

// DetectZFS runs `zfs list -H -o mountpoint,name` and returns a driver
// bound to whichever dataset's mountpoint is an ancestor of root. A dataset
// name seeded via PGBRANCH_ZFS_DATASET short-circuits the scan.
func DetectZFS(ctx context.Context, root, seedDataset string) (*ZFSDriver, bool) {
	if seedDataset != "" {
		return &ZFSDriver{dataset: seedDataset}, true
	}
	if _, err := exec.LookPath("zfs"); err != nil {
		return nil, false
	}
	cmd := exec.CommandContext(ctx, "zfs", "list", "-H", "-o", "mountpoint,name")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, false
	}
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != 2 {
			continue
		}
		mountpoint, dataset := fields[0], fields[1]
		if mountpoint == "-" || mountpoint == "none" {
			continue
		}
		if isAncestor(mountpoint, absRoot) {
			return &ZFSDriver{dataset: dataset}, true
		}
	}
	return nil, false
}

// CreatePool provisions a new zpool backed by a sparse file under root, of
// the given size in bytes, and mounts it at root. It's meant for
// laptop/CI setups with no ZFS-backed disk already available; production
// deployments are expected to provide their own pool and zfs_dataset.
func CreatePool(ctx context.Context, root, poolName string, sizeBytes int64) (*ZFSDriver, error) {
	if _, err := exec.LookPath("zpool"); err != nil {
		return nil, pgerr.New(pgerr.StorageUnavailable, pgerr.Context{Phase: "storage-setup-zfs"}, err, "zpool binary not found")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, pgerr.New(pgerr.IoError, pgerr.Context{Phase: "storage-setup-zfs"}, err, "resolve data root")
	}
	vdevPath := filepath.Join(filepath.Dir(absRoot), poolName+".vdev")
	if err := run(ctx, "truncate", "-s", fmt.Sprintf("%d", sizeBytes), vdevPath); err != nil {
		return nil, pgerr.New(pgerr.StorageUnavailable, pgerr.Context{Phase: "storage-setup-zfs"}, err, "allocate backing file")
	}
	if err := run(ctx, "zpool", "create", "-m", absRoot, poolName, vdevPath); err != nil {
		return nil, pgerr.New(pgerr.StorageUnavailable, pgerr.Context{Phase: "storage-setup-zfs"}, err, "zpool create")
	}
	return &ZFSDriver{dataset: poolName}, nil
}

func isAncestor(ancestor, path string) bool {
	rel, err := filepath.Rel(ancestor, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

func childDataset(d *ZFSDriver, dst string) string {
	return d.dataset + "/" + filepath.Base(dst)
}

func (d *ZFSDriver) Clone(ctx context.Context, src, dst string) error {
	if err := ensureQuiesced(src); err != nil {
		return err
	}
	snapshot := d.dataset + "@pgbranch-clone"
	if err := run(ctx, "zfs", "snapshot", snapshot); err != nil {
		return pgerr.New(pgerr.StorageUnavailable, pgerr.Context{Phase: "storage-clone"}, err, "zfs snapshot")
	}
	defer run(ctx, "zfs", "destroy", snapshot)
	child := childDataset(d, dst)
	if err := run(ctx, "zfs", "clone", snapshot, child); err != nil {
		return pgerr.New(pgerr.StorageUnavailable, pgerr.Context{Phase: "storage-clone"}, err, "zfs clone")
	}
	return nil
}

func (d *ZFSDriver) Destroy(ctx context.Context, dst string) error {
	child := childDataset(d, dst)
	if err := run(ctx, "zfs", "destroy", "-r", child); err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "storage-destroy"}, err, "zfs destroy")
	}
	return nil
}

func (d *ZFSDriver) Reset(ctx context.Context, dst, src string) error {
	if err := d.Destroy(ctx, dst); err != nil {
		return err
	}
	return d.Clone(ctx, src, dst)
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Run()
}
