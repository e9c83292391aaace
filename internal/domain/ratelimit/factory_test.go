package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToMemory(t *testing.T) {
	l, err := New(Config{MaxRequests: 1, Window: time.Minute})
	require.NoError(t, err)
	defer l.Close(context.Background())

	_, ok := l.(*memoryLimiter)
	assert.True(t, ok)
}

func TestNew_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	l, err := New(Config{
		Driver:      "Redis",
		MaxRequests: 1,
		Window:      time.Minute,
		Redis:       &RedisConfig{Addr: mr.Addr()},
	})
	require.NoError(t, err)
	defer l.Close(context.Background())

	_, ok := l.(*redisLimiter)
	assert.True(t, ok)
}

func TestNew_Unsupported(t *testing.T) {
	_, err := New(Config{Driver: "etcd"})
	assert.Error(t, err)
}
