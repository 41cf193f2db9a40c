package session

import (
	"context"
	"log/slog"
	"time"
)

type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ReapObserver receives the number of rows removed by each pass.
type ReapObserver interface {
	SessionsReaped(n int64)
}

// Reaper deletes sessions past their expiry.
type Reaper struct {
	store    ExpiredDeleter
	interval time.Duration
	now      func() time.Time
	observer ReapObserver
	log      *slog.Logger
}

func NewReaper(store ExpiredDeleter, interval time.Duration, observer ReapObserver, log *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}

	return &Reaper{
		store:    store,
		interval: interval,
		now:      time.Now,
		observer: observer,
		log:      log,
	}
}

// RunOnce is idempotent.
func (r *Reaper) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()

	n, err := r.store.DeleteExpired(ctx, r.now())
	if err != nil {
		r.log.Error("session.reaper.deleteExpired failed", slog.Any("err", err))
		return 0, err
	}
	if r.observer != nil {
		r.observer.SessionsReaped(n)
	}

	r.log.Info("session.reaper done",
		slog.Int64("deleted_count", n),
		slog.Duration("duration", time.Since(start)))
	return n, nil
}

// Run reaps once immediately, then every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("session.reaper started", slog.Duration("interval", r.interval))
	_, _ = r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("session.reaper stopped")
			return
		case <-ticker.C:
			_, _ = r.RunOnce(ctx)
		}
	}
}
