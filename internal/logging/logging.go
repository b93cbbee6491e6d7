package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	// Level is the log level (debug, info, warn, error)
	Level string `yaml:"level"`
	// Format is the log format (json or console)
	Format string `yaml:"format"`
	// Development enables development mode (console encoder defaults,
	// caller info, stack traces on errors)
	Development bool `yaml:"development"`
}

// DefaultConfig returns the production logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
	}
}

// DevelopmentConfig returns a configuration for local development.
func DevelopmentConfig() Config {
	return Config{
		Level:       "debug",
		Format:      "console",
		Development: true,
	}
}

// New creates a logger with the given configuration.
func New(config Config) (*zap.Logger, error) {
	var encoderConfig zapcore.EncoderConfig
	if config.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	format := config.Format
	if format == "" {
		format = "json"
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(parseLevel(config.Level)),
		Development:       config.Development,
		DisableCaller:     !config.Development,
		DisableStacktrace: !config.Development,
		Encoding:          format,
		EncoderConfig:     encoderConfig,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}

	return zapConfig.Build()
}

// FromEnv creates a logger based on environment variables:
// LOG_LEVEL (default info), LOG_FORMAT (default json), LOG_DEV.
func FromEnv() (*zap.Logger, error) {
	config := DefaultConfig()
	if os.Getenv("LOG_DEV") == "true" {
		config = DevelopmentConfig()
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Format = format
	}
	return New(config)
}

// Nop returns a logger that discards all logs.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info", "":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
