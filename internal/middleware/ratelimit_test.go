package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("connection refused")
}

func setupRateLimitRouter(store RateLimitStore, limit int) *gin.Engine {
	r := gin.New()
	r.Use(RateLimit(store, "api", limit, time.Minute))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func ping(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
	req.RemoteAddr = ip + ":12345"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	r := setupRateLimitRouter(store, 3)

	for i := 0; i < 3; i++ {
		rec := ping(r, "10.0.0.1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := ping(r, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", errorCode(t, rec))

	// Other clients keep their own window.
	assert.Equal(t, http.StatusOK, ping(r, "10.0.0.2").Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := setupRateLimitRouter(failingStore{}, 1)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, ping(r, "10.0.0.1").Code)
	}
}

func TestMemoryStoreWindowReset(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	count, resetAt, err := store.Hit(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, now.Add(time.Minute), resetAt)

	count, _, _ = store.Hit(context.Background(), "k", time.Minute)
	assert.Equal(t, 2, count)

	now = now.Add(time.Minute)
	count, _, _ = store.Hit(context.Background(), "k", time.Minute)
	assert.Equal(t, 1, count, "a new window starts at the reset instant")

	now = now.Add(2 * time.Minute)
	store.evictExpired()
	store.mu.Lock()
	assert.Empty(t, store.counters)
	store.mu.Unlock()
}

// scriptedRedis answers pipelines in process and records the commands sent.
type scriptedRedis struct {
	count int64
	ttl   time.Duration
	sent  [][]interface{}
}

func (h *scriptedRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *scriptedRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (h *scriptedRedis) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(_ context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			h.sent = append(h.sent, cmd.Args())
			switch cmd := cmd.(type) {
			case *redis.IntCmd:
				cmd.SetVal(h.count)
			case *redis.DurationCmd:
				cmd.SetVal(h.ttl)
			}
		}
		return nil
	}
}

func TestRedisStoreHit(t *testing.T) {
	script := &scriptedRedis{count: 3, ttl: 30 * time.Second}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(script)
	store := &RedisStore{client: client}
	t.Cleanup(func() { _ = store.Close() })

	count, reset, err := store.Hit(context.Background(), "auth:10.0.0.1", time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 3, count)
	assert.WithinDuration(t, time.Now().Add(30*time.Second), reset, 2*time.Second)

	var names []string
	var set []interface{}
	for _, args := range script.sent {
		name := args[0].(string)
		if name == "multi" || name == "exec" {
			continue
		}
		names = append(names, name)
		if name == "set" {
			set = args
		}
	}
	// SET ... NX with a TTL instead of EXPIRE NX, which needs Redis 7.
	assert.Equal(t, []string{"set", "incr", "pttl"}, names)
	require.NotNil(t, set)
	assert.Equal(t, "ratelimit:auth:10.0.0.1", set[1])
	assert.Equal(t, "nx", set[len(set)-1])
	assert.NotContains(t, names, "expire")
}

func TestRedisStoreHitFallsBackToWindow(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(&scriptedRedis{count: 1, ttl: -1})
	store := &RedisStore{client: client}
	t.Cleanup(func() { _ = store.Close() })

	_, reset, err := store.Hit(context.Background(), "api:u1", time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), reset, 2*time.Second)
}
