package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestViewStateToggle(t *testing.T) {
	store := NewViewStateStore()

	require.False(t, store.IsExpanded("sess-1", "notif-1"))

	require.True(t, store.Toggle("sess-1", "notif-1"))
	require.True(t, store.IsExpanded("sess-1", "notif-1"))

	// Sessions do not leak into each other.
	require.False(t, store.IsExpanded("sess-2", "notif-1"))

	require.False(t, store.Toggle("sess-1", "notif-1"))
	require.False(t, store.IsExpanded("sess-1", "notif-1"))
}

func TestViewStateReset(t *testing.T) {
	store := NewViewStateStore()

	store.Toggle("sess-1", "notif-1")
	store.Toggle("sess-1", "notif-2")
	store.Toggle("sess-2", "notif-1")

	store.Reset("sess-1")

	require.False(t, store.IsExpanded("sess-1", "notif-1"))
	require.False(t, store.IsExpanded("sess-1", "notif-2"))
	require.True(t, store.IsExpanded("sess-2", "notif-1"))
}
