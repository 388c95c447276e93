package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "state.R1", []byte(`{"battery":42}`)))

	got, found, err := store.Get(ctx, "state.R1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte(`{"battery":42}`), got)

	_, found, err = store.Get(ctx, "state.R2")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	in := []byte("original")
	require.NoError(t, store.Put(ctx, "k", in))

	in[0] = 'X'

	got, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got, "caller mutation must not leak into the store")

	got[0] = 'Y'

	again, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", []byte("v")))
	require.NoError(t, store.Delete(ctx, "k"))

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Delete(ctx, "k"), "deleting a missing key is not an error")
}
