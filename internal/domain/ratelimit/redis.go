package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindow increments the counter and starts the window on first hit.
// Returns {count, pttl}.
var fixedWindow = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

type redisLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedis constructs a limiter sharing counters through redis.
func NewRedis(cfg Config) (Limiter, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "ratelimit:"
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Hour
	}

	return &redisLimiter{
		client: client,
		max:    cfg.MaxRequests,
		window: window,
		prefix: prefix,
		now:    time.Now,
	}, nil
}

func (l *redisLimiter) key(identity string) string {
	return l.prefix + identity
}

func (l *redisLimiter) Check(ctx context.Context, identity string) (Decision, error) {
	now := l.now()
	if l.max <= 0 {
		return Decision{Allowed: false, Remaining: 0, ResetAt: now.Add(l.window)}, nil
	}

	res, err := fixedWindow.Run(ctx, l.client, []string{l.key(identity)}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("%w: unexpected script reply %v", ErrStoreUnavailable, res)
	}

	count := int(res[0])
	resetAt := now.Add(time.Duration(res[1]) * time.Millisecond)

	if count > l.max {
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	return Decision{
		Allowed:   true,
		Remaining: l.max - count,
		ResetAt:   resetAt,
	}, nil
}

func (l *redisLimiter) Close(context.Context) error {
	return l.client.Close()
}
