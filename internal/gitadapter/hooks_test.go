package gitadapter

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallThenUninstallRoundTripNoExistingHook(t *testing.T) {
	fsys := afero.NewMemMapFs()
	root := "/repo"
	require.NoError(t, InstallHooks(fsys, root, "/usr/local/bin/pgbranch"))

	exists, _ := afero.Exists(fsys, root+"/.git/hooks/post-checkout")
	assert.True(t, exists)

	require.NoError(t, UninstallHooks(fsys, root))
	exists, _ = afero.Exists(fsys, root+"/.git/hooks/post-checkout")
	assert.False(t, exists, "hook file should be removed, matching pre-install absence")
}

func TestInstallPreservesExistingHookContent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	root := "/repo"
	original := "#!/bin/sh\necho custom-hook\n"
	require.NoError(t, afero.WriteFile(fsys, root+"/.git/hooks/post-checkout", []byte(original), 0o755))

	require.NoError(t, InstallHooks(fsys, root, "/usr/local/bin/pgbranch"))
	data, err := afero.ReadFile(fsys, root+"/.git/hooks/post-checkout")
	require.NoError(t, err)
	assert.Contains(t, string(data), "echo custom-hook")
	assert.Contains(t, string(data), beginMarker)

	require.NoError(t, UninstallHooks(fsys, root))
	restored, err := afero.ReadFile(fsys, root+"/.git/hooks/post-checkout")
	require.NoError(t, err)
	assert.Equal(t, original, string(restored), "uninstall must restore byte-identical pre-install content")
}

func TestInstallIsIdempotent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	root := "/repo"
	require.NoError(t, InstallHooks(fsys, root, "/usr/local/bin/pgbranch"))
	first, _ := afero.ReadFile(fsys, root+"/.git/hooks/post-checkout")
	require.NoError(t, InstallHooks(fsys, root, "/usr/local/bin/pgbranch"))
	second, _ := afero.ReadFile(fsys, root+"/.git/hooks/post-checkout")
	assert.Equal(t, string(first), string(second))
}

func TestUninstallOnNeverInstalledIsNoop(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, UninstallHooks(fsys, "/repo"))
}
