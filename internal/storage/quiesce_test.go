package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgbranch/pgbranch/internal/pgerr"
)

func TestCloneFailsWithSourceBusyOnRecentWALActivity(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "child")
	walDir := filepath.Join(src, "pg_wal")
	require.NoError(t, os.Mkdir(walDir, 0o755))
	// A freshly written segment looks like an un-quiesced postmaster.
	require.NoError(t, os.WriteFile(filepath.Join(walDir, "000000010000000000000001"), []byte("wal"), 0o600))

	var d FullCopyDriver
	err := d.Clone(context.Background(), src, dst)
	require.Error(t, err)
	var pe *pgerr.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, pgerr.SourceBusy, pe.Kind)
}

func TestCloneToleratesMissingWALDir(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "child")
	require.NoError(t, os.WriteFile(filepath.Join(src, "f"), []byte("x"), 0o644))

	var d FullCopyDriver
	require.NoError(t, d.Clone(context.Background(), src, dst))
}
