package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Level  zapcore.Level
	Format string // "json" | "console"
	App    string
}

func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func New(opts Options) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(opts.Level)
	if strings.ToLower(strings.TrimSpace(opts.Format)) == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	log, err := cfg.Build()
	if err != nil {
		// Config estática; si falla es un bug, no un error de runtime.
		panic(err)
	}

	if app := strings.TrimSpace(opts.App); app != "" {
		log = log.With(zap.String("app", app))
	}
	return log
}

// NewFromEnv crea el logger desde env:
// - LOG_LEVEL=debug|info|warn|error (default info)
// - LOG_FORMAT=json|console (default json)
// - APP_NAME=medicine-history (opcional)
func NewFromEnv() *zap.Logger {
	return New(Options{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: os.Getenv("LOG_FORMAT"),
		App:    os.Getenv("APP_NAME"),
	})
}
