package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/arluqh/pregnancy-food-checker/internal/platform/errors"
)

const (
	// DefaultPath is used when CONFIG_PATH is unset.
	DefaultPath = "config.yaml"

	envConfigPath = "CONFIG_PATH"
	envAPIKey     = "GEMINI_API_KEY"
	envAppEnv     = "APP_ENV"
	envStrictMode = "STRICT_MODE"
	envPort       = "PORT"
	envLogLevel   = "LOG_LEVEL"
	envLimiter    = "RATE_LIMIT_DRIVER"
	envRedisAddr  = "REDIS_ADDR"
)

// Loader reads the YAML file, optional .env and environment overrides.
type Loader struct {
	useDotEnv bool
	path      string
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader reading CONFIG_PATH (or config.yaml) and .env.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		lookupEnv: os.LookupEnv,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the config file path, bypassing CONFIG_PATH.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnv overrides environment lookup (useful for tests).
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	// Path is empty when no file was found and defaults were used.
	Path         string
	DotEnvLoaded bool
}

// Load builds the configuration: defaults, then file, then environment.
func (l *Loader) Load() (*Result, error) {
	const op = "config.Load"

	res := &Result{}
	if l.useDotEnv {
		res.DotEnvLoaded = godotenv.Load() == nil
	}

	cfg := DefaultConfig()
	path := l.resolvePath()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.KindConfig, op, fmt.Sprintf("parse %s", path), err)
		}
		res.Path = path
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrap(errors.KindConfig, op, fmt.Sprintf("read %s", path), err)
	}

	l.applyEnv(cfg)

	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	res.Config = cfg
	return res, nil
}

func (l *Loader) resolvePath() string {
	if l.path != "" {
		return l.path
	}
	if p, ok := l.lookupEnv(envConfigPath); ok && strings.TrimSpace(p) != "" {
		return p
	}
	return DefaultPath
}

func (l *Loader) env(key string) (string, bool) {
	v, ok := l.lookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (l *Loader) applyEnv(cfg *Config) {
	if v, ok := l.env(envAPIKey); ok {
		cfg.Inference.APIKey = v
	}
	if v, ok := l.env(envAppEnv); ok && strings.EqualFold(v, "production") {
		cfg.Security.Strict = true
	}
	if v, ok := l.env(envStrictMode); ok {
		if strict, err := strconv.ParseBool(v); err == nil && strict {
			cfg.Security.Strict = true
		}
	}
	if v, ok := l.env(envPort); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v, ok := l.env(envLogLevel); ok {
		cfg.Log.Level = v
	}
	if v, ok := l.env(envLimiter); ok {
		cfg.RateLimit.Driver = v
	}
	if v, ok := l.env(envRedisAddr); ok {
		cfg.RateLimit.Redis.Addr = v
	}
}

func (l *Loader) validate(cfg *Config) error {
	return cfg.Validate()
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	const op = "config.Validate"

	invalid := func(format string, args ...any) error {
		return errors.New(errors.KindConfig, op, fmt.Sprintf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return invalid("invalid server port %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return invalid("server.max_body_bytes must be positive")
	}
	if c.Security.MaxImageSize <= 0 {
		return invalid("security.max_image_size must be positive")
	}
	if int64(c.Security.MaxImageSize) > c.Server.MaxBodyBytes {
		return invalid("security.max_image_size exceeds server.max_body_bytes")
	}
	if len(c.Security.AllowedFormats) == 0 {
		return invalid("security.allowed_formats is empty")
	}
	if c.RateLimit.MaxRequests < 0 {
		return invalid("rate_limit.max_requests must not be negative")
	}
	if c.RateLimit.Window <= 0 {
		return invalid("rate_limit.window must be positive")
	}
	switch strings.ToLower(c.RateLimit.Driver) {
	case "", "memory":
	case "redis":
		if c.RateLimit.Redis.Addr == "" {
			return invalid("rate_limit.redis.addr is required for the redis driver")
		}
	default:
		return invalid("unsupported rate_limit.driver %q", c.RateLimit.Driver)
	}
	if c.Inference.Attempts < 1 {
		return invalid("inference.attempts must be at least 1")
	}
	if c.Inference.BaseDelay < 0 {
		return invalid("inference.base_delay must not be negative")
	}
	if c.Inference.Timeout <= 0 {
		return invalid("inference.timeout must be positive")
	}
	if c.Inference.Model == "" {
		return invalid("inference.model is required")
	}
	return nil
}
