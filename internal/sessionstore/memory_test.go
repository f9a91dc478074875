package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PurgeIdle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	require.NoError(t, store.Set(ctx, "old", KeyFlash, []byte(`"x"`)))
	require.NoError(t, store.Touch(ctx, "old", now.Add(-2*time.Hour)))
	require.NoError(t, store.Set(ctx, "fresh", KeyFlash, []byte(`"y"`)))
	require.NoError(t, store.Touch(ctx, "fresh", now))

	purged, err := store.PurgeIdle(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	_, ok, _ := store.Get(ctx, "old", KeyFlash)
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "fresh", KeyFlash)
	assert.True(t, ok)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "s", KeyFlash, []byte(`"abc"`)))

	v, _, _ := store.Get(ctx, "s", KeyFlash)
	v[1] = 'z'

	again, _, _ := store.Get(ctx, "s", KeyFlash)
	assert.Equal(t, `"abc"`, string(again))
}

func TestMemoryStore_ClearNamespaceAndAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, k := range PrincipalKeys() {
		require.NoError(t, store.Set(ctx, "s", k, []byte(`"v"`)))
	}
	require.NoError(t, store.Set(ctx, "s", KeyFlash, []byte(`"hi"`)))
	require.NoError(t, store.Touch(ctx, "s", time.Now()))

	require.NoError(t, store.ClearNamespace(ctx, "s", NamespaceEmployee))
	keys, err := store.Keys(ctx, "s")
	require.NoError(t, err)
	assert.ElementsMatch(t, append(NamespaceAdmin.Keys(), KeyFlash), keys)

	require.NoError(t, store.ClearAll(ctx, "s"))
	keys, err = store.Keys(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, keys)
	_, ok, err := store.LastSeen(ctx, "s")
	require.NoError(t, err)
	assert.False(t, ok)
}
