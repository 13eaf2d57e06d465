package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivePrefixSuffix(t *testing.T) {
	name, err := Derive(Prefix, "pg_", "", "feature-a")
	require.NoError(t, err)
	assert.Equal(t, "pg_feature-a", name)

	name, err = Derive(Suffix, "", "_branch", "feature-a")
	require.NoError(t, err)
	assert.Equal(t, "feature-a_branch", name)
}

func TestDeriveReplaceBoundary(t *testing.T) {
	name, err := Derive(Replace, "", "", "Feature/Spaces & Symbols!")
	require.NoError(t, err)
	assert.Equal(t, "feature_spaces___symbols_", name)
}

func TestDeriveReplaceTruncatesTo63(t *testing.T) {
	long := strings.Repeat("a", 100)
	name, err := Derive(Replace, "", "", long)
	require.NoError(t, err)
	assert.Len(t, name, 63)
}

func TestDeriveReplaceDropsNonASCII(t *testing.T) {
	name, err := Derive(Replace, "", "", "café-répertoire")
	require.NoError(t, err)
	assert.Equal(t, "caf_rpertoire", name)
}

func TestDeriveUnknownStrategy(t *testing.T) {
	_, err := Derive(Strategy("bogus"), "", "", "x")
	assert.Error(t, err)
}
