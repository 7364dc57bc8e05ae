package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	apperrors "spendlens/internal/errors"
	"spendlens/internal/logger"
)

// RateLimitStore counts hits per key inside fixed windows.
type RateLimitStore interface {
	// Hit records one request for key and returns the count in the current
	// window together with the time the window resets.
	Hit(ctx context.Context, key string, window time.Duration) (int, time.Time, error)
}

// RateLimit returns a middleware allowing at most limit requests per client IP
// per window. Keys are namespaced by prefix so several limiters can share a store.
// Store failures let the request through.
func RateLimit(store RateLimitStore, prefix string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, resetAt, err := store.Hit(c.Request.Context(), prefix+":"+c.ClientIP(), window)
		if err != nil {
			logger.Get().Warnw("rate limit store unavailable", "prefix", prefix, "error", err)
			c.Next()
			return
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if count > limit {
			h.Set("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())+1))
			abortWithError(c, apperrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}

type windowCounter struct {
	count   int
	resetAt time.Time
}

// MemoryStore is a process-local fixed-window store.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
	now      func() time.Time

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

// NewMemoryStore creates a MemoryStore that evicts expired windows every cleanupInterval.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	s := &MemoryStore{
		counters:    make(map[string]*windowCounter),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	go s.startCleanup(cleanupInterval)
	return s
}

// Hit implements RateLimitStore.
func (s *MemoryStore) Hit(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	wc, ok := s.counters[key]
	if !ok || !now.Before(wc.resetAt) {
		wc = &windowCounter{resetAt: now.Add(window)}
		s.counters[key] = wc
	}
	wc.count++
	return wc.count, wc.resetAt, nil
}

func (s *MemoryStore) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, wc := range s.counters {
		if !now.Before(wc.resetAt) {
			delete(s.counters, key)
		}
	}
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() {
	s.shutdownOnce.Do(func() { close(s.stopCleanup) })
}

// RedisStore shares windows across API instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore parses a redis:// URL and verifies the connection.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

// Hit implements RateLimitStore. The first hit of a window creates the key
// with its expiry (SET NX with a TTL), so this works on any Redis from 2.6.12.
func (s *RedisStore) Hit(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	key = "ratelimit:" + key
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, window)
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, time.Time{}, err
	}

	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = window
	}
	return int(incr.Val()), time.Now().Add(remaining), nil
}

// Close releases the redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
