package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemoryStore()

	require.False(t, store.Get("a", "flag"))

	store.Set("a", "flag")
	require.True(t, store.Get("a", "flag"))
	require.False(t, store.Get("b", "flag"))
	require.False(t, store.Get("a", "other"))
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore()

	store.Set("a", "one")
	store.Set("a", "two")
	store.Set("b", "one")

	store.Clear("a")
	require.False(t, store.Get("a", "one"))
	require.False(t, store.Get("a", "two"))
	require.True(t, store.Get("b", "one"))

	// Clearing an unknown session is a no-op.
	store.Clear("missing")
}
