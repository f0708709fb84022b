package subway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoute(t *testing.T) {
	require.Nil(t, ParseRoute(""))
	require.Equal(t, []string{"a"}, ParseRoute("a"))
	require.Equal(t, []string{"a", "b", "c"}, ParseRoute("a.b.c"))
	require.Equal(t, []string{"a", "", "c"}, ParseRoute("a..c"))
}

func TestValidateID(t *testing.T) {
	require.True(t, ValidateID("node-1"))
	require.False(t, ValidateID(""))
	require.False(t, ValidateID("a.b"))
	require.False(t, ValidateID("\xff"))
}

func TestValidatePath(t *testing.T) {
	require.NoError(t, validatePath([]string{"a"}))
	require.NoError(t, validatePath([]string{"a", "b", "c"}))

	for _, path := range [][]string{
		nil,
		{"a", ""},
		{"a", "b", "a"},
		{"a", "a"},
		{"a", "\xfe"},
	} {
		require.ErrorIs(t, validatePath(path), ErrInvalidPath, "%v", path)
	}
}

func TestOriginPath(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, originPath("a", []string{"a", "b"}))
	require.Equal(t, []string{"a", "b", "c"}, originPath("a", []string{"b", "c"}))
	require.Equal(t, []string{"a"}, originPath("a", nil))
}
