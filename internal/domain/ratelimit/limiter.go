// Package ratelimit implements the per-client fixed-window admission limiter.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"time"
)

// ErrStoreUnavailable is returned when the backing store cannot answer.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// Decision is the outcome of a single Check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns whole seconds until the window resets, at least 1.
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(d.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter decides whether a client identity may proceed.
type Limiter interface {
	Check(ctx context.Context, identity string) (Decision, error)
	Close(ctx context.Context) error
}

// Identity derives the bucket key for a client from its address and user agent.
func Identity(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + "\x00" + userAgent))
	return hex.EncodeToString(sum[:])
}

// Config selects and tunes a limiter driver.
type Config struct {
	Driver      string
	MaxRequests int
	Window      time.Duration
	Redis       *RedisConfig
}

// RedisConfig holds redis driver settings.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}
