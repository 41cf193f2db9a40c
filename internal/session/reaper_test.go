package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockDeleter struct {
	deleteExpiredFn func(ctx context.Context, now time.Time) (int64, error)
	calls           int
}

func (m *mockDeleter) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.calls++
	return m.deleteExpiredFn(ctx, now)
}

type countingObserver struct{ total int64 }

func (o *countingObserver) SessionsReaped(n int64) { o.total += n }

func TestReaper_RunOnce(t *testing.T) {
	var gotNow time.Time
	store := &mockDeleter{deleteExpiredFn: func(_ context.Context, now time.Time) (int64, error) {
		gotNow = now
		return 4, nil
	}}
	obs := &countingObserver{}
	r := NewReaper(store, time.Minute, obs, discardLogger())
	r.now = func() time.Time { return testNow }

	n, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 4 || obs.total != 4 {
		t.Fatalf("deleted = %d, observed = %d, want 4", n, obs.total)
	}
	if !gotNow.Equal(testNow) {
		t.Fatalf("now = %v, want %v", gotNow, testNow)
	}
}

func TestReaper_RunOnceError(t *testing.T) {
	store := &mockDeleter{deleteExpiredFn: func(context.Context, time.Time) (int64, error) {
		return 0, errors.New("db down")
	}}
	obs := &countingObserver{}
	r := NewReaper(store, time.Minute, obs, discardLogger())

	if _, err := r.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if obs.total != 0 {
		t.Fatalf("observer called on failure: %d", obs.total)
	}
}

func TestReaper_RunStopsOnCancel(t *testing.T) {
	store := &mockDeleter{deleteExpiredFn: func(context.Context, time.Time) (int64, error) { return 0, nil }}
	r := NewReaper(store, time.Hour, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if store.calls < 1 {
		t.Fatalf("calls = %d, want an immediate pass", store.calls)
	}
}
