package ingest

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbauctions/archive/pkg/cache"
)

func TestOffsetDebounce(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()

	o, err := LoadOffset(ctx, store, 100) // debounce window = 1000
	require.NoError(t, err)

	// Small advances do not move the checkpoint.
	require.NoError(t, o.Set(ctx, 500))
	assert.Equal(t, int64(0), o.Get())

	// A jump past the window persists.
	require.NoError(t, o.Set(ctx, 1500))
	assert.Equal(t, int64(1500), o.Get())

	v, ok, err := store.Get(ctx, cache.KeyLastMigratedIndex)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1500", v)
}

func TestOffsetNeverDecreases(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	require.NoError(t, store.Set(ctx, cache.KeyLastMigratedIndex, strconv.Itoa(5000)))

	o, err := LoadOffset(ctx, store, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), o.Get())

	require.NoError(t, o.Set(ctx, 1000))
	require.NoError(t, o.Force(ctx, 1000))
	assert.Equal(t, int64(5000), o.Get())

	require.NoError(t, o.Force(ctx, 5001))
	assert.Equal(t, int64(5001), o.Get())
}
