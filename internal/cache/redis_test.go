package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client), mr
}

func TestBlacklist(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	ok, err := c.IsBlacklisted(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Blacklist(ctx, "tok", time.Minute))
	ok, err = c.IsBlacklisted(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = c.IsBlacklisted(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlacklistExpiredToken(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Blacklist(ctx, "old", 0))
	ok, err := c.IsBlacklisted(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllowWindow(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := c.Allow(ctx, "login:127.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
	}
	ok, err := c.Allow(ctx, "login:127.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Allow(ctx, "login:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute + time.Second)
	ok, err = c.Allow(ctx, "login:127.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
