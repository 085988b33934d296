package pulse

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresRedis(t *testing.T) {
	t.Parallel()
	_, err := New(Options{})
	require.ErrorContains(t, err, "redis client is required")
}

func TestStreamRequiresName(t *testing.T) {
	t.Parallel()
	c, err := New(Options{Redis: redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})})
	require.NoError(t, err)
	_, err = c.Stream("")
	require.ErrorContains(t, err, "stream name is required")
}

func TestAddRequiresEventName(t *testing.T) {
	t.Parallel()
	h := &handle{}
	_, err := h.Add(context.Background(), "", nil)
	require.ErrorContains(t, err, "event name is required")
}

func TestCloseOwnsRedisOnlyWhenAsked(t *testing.T) {
	t.Parallel()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	c, err := New(Options{Redis: rdb})
	require.NoError(t, err)
	require.NoError(t, c.Close(context.Background()))
	assert.NoError(t, rdb.Close())

	owned := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	c, err = New(Options{Redis: owned, CloseRedis: true})
	require.NoError(t, err)
	require.NoError(t, c.Close(context.Background()))
	assert.ErrorIs(t, owned.Close(), redis.ErrClosed)
}
