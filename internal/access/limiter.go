package access

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter counts requests per key over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// MemoryLimiter keeps request timestamps in process memory. It is only
// correct for a single server process.
type MemoryLimiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	attempts map[string][]time.Time
	now      func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:      max,
		window:   window,
		attempts: make(map[string][]time.Time),
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.recent(key, now)

	if len(recent) >= l.max {
		l.attempts[key] = recent
		return Decision{
			Limit:      l.max,
			RetryAfter: recent[0].Add(l.window).Sub(now),
		}, nil
	}

	l.attempts[key] = append(recent, now)
	return Decision{
		Allowed:   true,
		Limit:     l.max,
		Remaining: l.max - len(recent) - 1,
	}, nil
}

func (l *MemoryLimiter) recent(key string, now time.Time) []time.Time {
	var recent []time.Time
	for _, t := range l.attempts[key] {
		if now.Sub(t) < l.window {
			recent = append(recent, t)
		}
	}
	return recent
}

// Reset clears the window for key.
func (l *MemoryLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}

// Cleanup drops keys whose window has fully elapsed.
func (l *MemoryLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key := range l.attempts {
		if recent := l.recent(key, now); len(recent) == 0 {
			delete(l.attempts, key)
		} else {
			l.attempts[key] = recent
		}
	}
}

// RedisLimiter keeps one sorted set per key so every server process shares
// the same window.
type RedisLimiter struct {
	redis  *redis.Client
	prefix string
	max    int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		redis:  client,
		prefix: "rate_limit:account",
		max:    max,
		window: window,
		now:    time.Now,
	}
}

func (l *RedisLimiter) key(id string) string {
	return fmt.Sprintf("%s:%s", l.prefix, id)
}

func (l *RedisLimiter) Allow(ctx context.Context, id string) (Decision, error) {
	key := l.key(id)
	now := l.now()
	nowMs := now.UnixMilli()
	windowStart := nowMs - l.window.Milliseconds()
	member := strconv.FormatInt(nowMs, 10) + ":" + uuid.New().String()

	pipe := l.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	card := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowMs), Member: member})
	pipe.PExpire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("redis pipeline error: %w", err)
	}

	count := int(card.Val())
	if count < l.max {
		return Decision{Allowed: true, Limit: l.max, Remaining: l.max - count - 1}, nil
	}

	// Denied requests do not occupy the window.
	if err := l.redis.ZRem(ctx, key, member).Err(); err != nil {
		return Decision{}, fmt.Errorf("redis zrem: %w", err)
	}
	retry := l.window
	oldest, err := l.redis.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("redis zrange: %w", err)
	}
	if len(oldest) == 1 {
		retry = time.UnixMilli(int64(oldest[0].Score)).Add(l.window).Sub(now)
	}
	return Decision{Limit: l.max, RetryAfter: retry}, nil
}
