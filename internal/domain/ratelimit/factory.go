package ratelimit

import (
	"fmt"
	"strings"
)

// Driver identifiers supported by the limiter.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// New creates a limiter based on the provided configuration.
func New(cfg Config) (Limiter, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(cfg), nil
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("unsupported rate limit driver: %s", cfg.Driver)
	}
}
