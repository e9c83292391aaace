package testing

import (
	"io"
	"testing"

	"github.com/arluqh/pregnancy-food-checker/internal/platform/config"
	"github.com/arluqh/pregnancy-food-checker/internal/platform/logging"
)

// SetupTestConfig returns the default configuration with logs redirected to a
// temporary directory and a dummy inference credential.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Log.Level = "DEBUG"
	cfg.Log.Dir = t.TempDir()
	cfg.Log.File = "test.log"
	cfg.Inference.APIKey = "test-key"

	return cfg
}

// SetupTestLogger builds a logger that writes only to a temporary file.
func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
		Console:  io.Discard,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	return logger
}
