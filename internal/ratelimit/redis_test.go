package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T, limit int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, limit, window), s
}

func TestAllowWithinWindow(t *testing.T) {
	limiter, s := setupLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "share:abc")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}

	ok, err := limiter.Allow(ctx, "share:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	// другой ключ считается отдельно
	ok, err = limiter.Allow(ctx, "share:other")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, time.Minute, s.TTL("ratelimit:share:abc"))
}

func TestAllowResetsAfterWindow(t *testing.T) {
	limiter, s := setupLimiter(t, 1, time.Minute)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "share:abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "share:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	s.FastForward(time.Minute + time.Second)

	ok, err = limiter.Allow(ctx, "share:abc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllowUnlimited(t *testing.T) {
	limiter, s := setupLimiter(t, 0, time.Minute)

	ok, err := limiter.Allow(context.Background(), "share:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, s.Exists("ratelimit:share:abc"))
}

func TestAllowReportsRedisErrors(t *testing.T) {
	limiter, s := setupLimiter(t, 5, time.Minute)
	s.Close()

	_, err := limiter.Allow(context.Background(), "share:abc")
	assert.Error(t, err)
}

func TestConnectFailsOnBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-url://")
	assert.Error(t, err)
}
