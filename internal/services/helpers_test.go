package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormaliseIDs(t *testing.T) {
	require.Nil(t, normaliseIDs(nil))
	require.Nil(t, normaliseIDs([]string{"", "   "}))

	out := normaliseIDs([]string{" a ", "b", "a", "", "b"})
	require.Equal(t, []string{"a", "b"}, out)
}

func TestTruncateRunes(t *testing.T) {
	require.Equal(t, "short", truncateRunes("short", 30))
	require.Equal(t, strings.Repeat("x", 30)+"…", truncateRunes(strings.Repeat("x", 31), 30))

	// Multi-byte text is cut on rune boundaries.
	require.Equal(t, "héllo…", truncateRunes("héllo wörld", 5))
	require.Equal(t, "héllo wörld", truncateRunes("héllo wörld", 11))
}
