package logger

import (
	"log/slog"
	"time"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zap sampling defaults, per second.
const (
	defaultSampleInitial    = 100
	defaultSampleThereafter = 10
)

// newStdHandler writes text in dev and JSON elsewhere.
func newStdHandler(cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: cfg.level(), AddSource: cfg.AddSource}
	if cfg.Env == EnvDev {
		return slog.NewTextHandler(cfg.Output, opts)
	}
	return slog.NewJSONHandler(cfg.Output, opts)
}

func newZapHandler(cfg Config) slog.Handler {
	lvl := cfg.level()

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	if cfg.AddSource {
		enc.EncodeCaller = zapcore.ShortCallerEncoder
	}

	initial, thereafter := cfg.SampleInitial, cfg.SampleThereafter
	if initial <= 0 {
		initial = defaultSampleInitial
	}
	if thereafter <= 0 {
		thereafter = defaultSampleThereafter
	}

	core := zapcore.NewSamplerWithOptions(
		zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(cfg.Output), zapLevel(lvl)),
		time.Second, initial, thereafter,
	)
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return slogzap.Option{Level: lvl, Logger: z}.NewZapHandler()
}

// zapLevel maps slog's 4-step levels onto zap's 1-step ones.
func zapLevel(lvl slog.Level) zapcore.Level {
	z := zapcore.Level(lvl / 4)
	if z < zapcore.DebugLevel {
		return zapcore.DebugLevel
	}
	if z > zapcore.ErrorLevel {
		return zapcore.ErrorLevel
	}
	return z
}
