package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestSetGetDelete(t *testing.T) {
	keyring.MockInit()

	_, err := Get("proj-a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, Set("proj-a", "s3cret"))
	got, err := Get("proj-a")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	require.NoError(t, Delete("proj-a"))
	_, err = Get("proj-a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetGetDeleteDistinctProjects(t *testing.T) {
	keyring.MockInit()

	require.NoError(t, Set("proj-a", "a-pass"))
	require.NoError(t, Set("proj-b", "b-pass"))

	gotA, err := Get("proj-a")
	require.NoError(t, err)
	assert.Equal(t, "a-pass", gotA)

	gotB, err := Get("proj-b")
	require.NoError(t, err)
	assert.Equal(t, "b-pass", gotB)
}
