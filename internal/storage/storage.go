// Package storage implements the Copy-on-Write storage driver: strategy
// detection and clone/destroy/reset of a branch's data directory, oblivious
// to PostgreSQL itself; the Lifecycle Engine is responsible for arranging
// quiescence before calling Clone.
package storage

import "context"

// Strategy is a detected Copy-on-Write mechanism.
type Strategy string

const (
	APFS     Strategy = "apfs"
	ZFS      Strategy = "zfs"
	Reflink  Strategy = "reflink"
	FullCopy Strategy = "fullcopy"
)

// Driver executes CoW clone/destroy/reset of a data directory using one
// detected strategy.
type Driver interface {
	Strategy() Strategy
	// Clone snapshots src into dst. The caller must have quiesced src
	// (PostgreSQL stopped or paused) before calling.
	Clone(ctx context.Context, src, dst string) error
	// Destroy removes dst (dataset destroy for ZFS, directory removal
	// otherwise).
	Destroy(ctx context.Context, dst string) error
	// Reset re-clones dst from src, discarding dst's prior contents.
	Reset(ctx context.Context, dst, src string) error
}

// ZFSDatasetProvider is implemented by drivers that work on a named
// dataset (i.e. the ZFS driver). Nothing calls it: the dataset name is not
// written to the State Store, and ProjectState.ZFSDataset stays empty.
type ZFSDatasetProvider interface {
	Dataset() string
}
