package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullCopyCloneIsByteIdentical(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "child")
	require.NoError(t, os.WriteFile(filepath.Join(src, "PG_VERSION"), []byte("15\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(src, "base"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "base", "1"), []byte("data"), 0o644))

	var d FullCopyDriver
	require.NoError(t, d.Clone(context.Background(), src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "PG_VERSION"))
	require.NoError(t, err)
	assert.Equal(t, "15\n", string(data))
	data, err = os.ReadFile(filepath.Join(dst, "base", "1"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestFullCopyDestroyRemovesTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "child")
	require.NoError(t, os.WriteFile(filepath.Join(src, "f"), []byte("x"), 0o644))

	var d FullCopyDriver
	require.NoError(t, d.Clone(context.Background(), src, dst))
	require.NoError(t, d.Destroy(context.Background(), dst))
	_, err := os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
}

func TestFullCopyResetYieldsFreshCloneContent(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "child")
	require.NoError(t, os.WriteFile(filepath.Join(src, "f"), []byte("v1"), 0o644))

	var d FullCopyDriver
	require.NoError(t, d.Clone(context.Background(), src, dst))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "f"), []byte("mutated"), 0o644))

	require.NoError(t, d.Reset(context.Background(), dst, src))
	data, err := os.ReadFile(filepath.Join(dst, "f"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data), "reset must discard the branch's own mutations and match the parent")
}

func TestDetectReturnsAUsableDriver(t *testing.T) {
	root := t.TempDir()
	d := Detect(context.Background(), root, "")
	assert.NotEmpty(t, d.Strategy())
}
