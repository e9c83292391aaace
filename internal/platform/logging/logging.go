package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/arluqh/pregnancy-food-checker/internal/utils"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
	// Console replaces stdout for the colored text handler.
	Console io.Writer
}

// Logger provides access to both slog and the tagged logger used across the service.
type Logger struct {
	legacy *utils.Logger
}

// New creates a new Logger instance backed by utils.Logger.
func New(cfg Config) (*Logger, error) {
	logCfg := &utils.LogCfg{
		LogLevel: cfg.Level,
		LogDir:   cfg.Dir,
		LogFile:  cfg.Filename,
		Console:  cfg.Console,
	}
	legacy, err := utils.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	return &Logger{legacy: legacy}, nil
}

// Legacy exposes the tagged logger.
func (l *Logger) Legacy() *utils.Logger {
	return l.legacy
}

// Slog exposes the structured logger for observability hooks.
func (l *Logger) Slog() *slog.Logger {
	return l.legacy.Slog()
}

// Close flushes and closes the underlying log file.
func (l *Logger) Close() error {
	return l.legacy.Close()
}
