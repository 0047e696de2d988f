package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client)
}

func TestSortedSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.ZAdd(ctx, "queue", "a", 10))
	require.NoError(t, store.ZAdd(ctx, "queue", "b", 20))
	require.NoError(t, store.ZAdd(ctx, "queue", "c", 30))

	due, err := store.ZRangeByScoreWithScores(ctx, "queue", "0", "25")
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "a", due[0].Member)
	assert.Equal(t, "b", due[1].Member)

	removed, err := store.ZRem(ctx, "queue", "a", "b", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	n, err := store.ZCard(ctx, "queue")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
