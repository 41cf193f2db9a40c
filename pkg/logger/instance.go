package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// EnsureInstanceID returns v unchanged, or "<hostname>-<8 hex chars>" when v is empty.
// The same id tags bus envelopes, so it must be stable for the process lifetime.
func EnsureInstanceID(v string) string {
	if v != "" {
		return v
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "node"
	}
	suffix := uuid.NewString()
	return host + "-" + suffix[:8]
}

func baseAttrs(cfg Config, startedAt time.Time) []slog.Attr {
	attrs := make([]slog.Attr, 0, 5)
	attrs = append(attrs,
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("instance_id", cfg.InstanceID),
	)
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	return append(attrs, slog.Time("started_at", startedAt))
}
