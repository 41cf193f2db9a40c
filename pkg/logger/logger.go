// Package logger configures the process-wide slog logger.
package logger

import (
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

var def atomic.Pointer[slog.Logger]

// Init builds the handler for cfg and installs it as slog's default.
// Backend defaults to std in dev and zap elsewhere.
func Init(cfg Config) *slog.Logger {
	if cfg.Env == "" {
		cfg.Env = DetectEnv()
	}
	if cfg.Service == "" {
		cfg.Service = "chat-gateway"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	cfg.InstanceID = EnsureInstanceID(cfg.InstanceID)
	if cfg.Backend == "" {
		cfg.Backend = BackendZap
		if cfg.Env == EnvDev {
			cfg.Backend = BackendStd
		}
	}

	var h slog.Handler
	if cfg.Backend == BackendZap {
		h = newZapHandler(cfg)
	} else {
		h = newStdHandler(cfg)
	}

	l := slog.New(h.WithAttrs(baseAttrs(cfg, time.Now())))
	slog.SetDefault(l)
	def.Store(l)
	return l
}

// L returns the logger installed by Init, initialising a default one on first use.
func L() *slog.Logger {
	if l := def.Load(); l != nil {
		return l
	}
	return Init(Config{})
}
