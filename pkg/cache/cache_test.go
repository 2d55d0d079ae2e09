package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	return s, NewRedisCacheFromClient(client, "mmon")
}

func TestNewRedisClient(t *testing.T) {
	s := miniredis.RunT(t)

	addr := s.Addr()

	client, err := NewRedisClient(WithRedisAddr(addr), WithRedisPool(4, 1, time.Second))
	require.NoError(t, err)
	defer client.Close()

	s.Close()
	_, err = NewRedisClient(WithRedisAddr(addr))
	assert.ErrorContains(t, err, "redis ping")
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "market:binance:BTCUSDT:1m", payload{"BTCUSDT", 93000}, time.Minute))

	var got payload
	require.NoError(t, mc.Get(ctx, "market:binance:BTCUSDT:1m", &got))
	assert.Equal(t, payload{"BTCUSDT", 93000}, got)

	var s string
	require.NoError(t, mc.Set(ctx, "raw", "hello", 0))
	require.NoError(t, mc.Get(ctx, "raw", &s))
	assert.Equal(t, "hello", s)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "k", 1, 30*time.Second))
	ok, _ := mc.Exists(ctx, "k")
	assert.True(t, ok)

	now = now.Add(31 * time.Second)
	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { now = now.Add(time.Millisecond); return now }

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	require.NoError(t, mc.Set(ctx, "b", 2, 0))
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &v))
	assert.NoError(t, mc.Get(ctx, "c", &v))
}

func TestMemoryCachePatternAndLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	_ = mc.Set(ctx, "market:binance:BTCUSDT:1m", 1, 0)
	_ = mc.Set(ctx, "market:binance:ETHUSDT:1m", 1, 0)
	_ = mc.Set(ctx, "pnl:recent", 1, 0)
	require.NoError(t, mc.DeleteByPattern(ctx, "market:*"))
	assert.Equal(t, 1, mc.Len())

	ok, err := mc.TryLock(ctx, "poll", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = mc.TryLock(ctx, "poll", time.Minute)
	assert.False(t, ok)
	require.NoError(t, mc.Unlock(ctx, "poll"))
	ok, _ = mc.TryLock(ctx, "poll", time.Minute)
	assert.True(t, ok)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	s, rc := newTestRedis(t)

	require.NoError(t, rc.Set(ctx, "market:x", payload{"ETHUSDT", 3450}, time.Minute))
	assert.True(t, s.Exists("mmon:market:x"))

	var got payload
	require.NoError(t, rc.Get(ctx, "market:x", &got))
	assert.Equal(t, 3450.0, got.Price)

	s.FastForward(2 * time.Minute)
	assert.ErrorIs(t, rc.Get(ctx, "market:x", &got), ErrCacheMiss)

	_ = rc.Set(ctx, "market:a", "1", 0)
	_ = rc.Set(ctx, "market:b", "2", 0)
	_ = rc.Set(ctx, "other", "3", 0)
	require.NoError(t, rc.DeleteByPattern(ctx, "market:*"))
	ok, err := rc.Exists(ctx, "market:a", "market:b")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, _ = rc.Exists(ctx, "other")
	assert.True(t, ok)

	locked, err := rc.TryLock(ctx, "poll", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)
	locked, _ = rc.TryLock(ctx, "poll", time.Minute)
	assert.False(t, locked)
	require.NoError(t, rc.Unlock(ctx, "poll"))
}

func TestLayeredCacheReadsThrough(t *testing.T) {
	ctx := context.Background()
	s, rc := newTestRedis(t)
	lc := NewLayeredCache(rc, WithLayeredMemoryTTL(time.Minute))
	defer lc.mem.Close()

	require.NoError(t, s.Set("mmon:seeded", `{"symbol":"SOLUSDT","price":190}`))

	var got payload
	require.NoError(t, lc.Get(ctx, "seeded", &got))
	assert.Equal(t, "SOLUSDT", got.Symbol)

	// served from L1 after Redis loses it
	s.Del("mmon:seeded")
	got = payload{}
	require.NoError(t, lc.Get(ctx, "seeded", &got))
	assert.Equal(t, 190.0, got.Price)

	require.NoError(t, lc.Delete(ctx, "seeded"))
	assert.ErrorIs(t, lc.Get(ctx, "seeded", &got), ErrCacheMiss)
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	calls := 0
	load := func(context.Context) (payload, error) {
		calls++
		return payload{"BNBUSDT", 710}, nil
	}

	v, hit, err := Remember(ctx, mc, "k", time.Minute, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 710.0, v.Price)

	v, hit, err = Remember(ctx, mc, "k", time.Minute, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "BNBUSDT", v.Symbol)
	assert.Equal(t, 1, calls)

	_, _, err = Remember(ctx, mc, "other", time.Minute, func(context.Context) (payload, error) {
		return payload{}, errors.New("upstream down")
	})
	assert.EqualError(t, err, "upstream down")
	ok, _ := mc.Exists(ctx, "other")
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "market:binance:BTCUSDT:1m", Key("market", "binance", "BTCUSDT", "1m"))
	assert.Equal(t, "pnl:24", Key("pnl", 24))
}
