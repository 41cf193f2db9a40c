package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Env string

const (
	EnvDev   Env = "dev"
	EnvStage Env = "stage"
	EnvProd  Env = "prod"
)

// DetectEnv reads APP_ENV; unknown or empty means dev.
func DetectEnv() Env { return ParseEnv(os.Getenv("APP_ENV")) }

func ParseEnv(raw string) Env {
	switch v := strings.ToLower(strings.TrimSpace(raw)); v {
	case "prod", "production":
		return EnvProd
	case "stage", "staging", "preprod":
		return EnvStage
	default:
		return EnvDev
	}
}

type Backend string

const (
	BackendStd Backend = "std" // text handler, used in dev
	BackendZap Backend = "zap" // JSON through slog-zap
)

type Config struct {
	Service    string
	Version    string
	InstanceID string

	Level   slog.Level
	Env     Env
	Backend Backend // default: std for dev, zap otherwise
	Debug   bool

	// Zap sampling per second
	SampleInitial    int
	SampleThereafter int

	AddSource bool

	// Output defaults to os.Stdout.
	Output io.Writer
}

// ParseLevel accepts debug|info|warn|error; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c Config) level() slog.Level {
	if c.Debug && c.Level == 0 {
		return slog.LevelDebug
	}
	return c.Level
}
