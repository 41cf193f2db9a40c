package http

import (
	"context"
	"errors"
	"net/http"
	"time"
)

type Config struct {
	Addr            string        // ":8080"
	ReadTimeout     time.Duration // 15s
	WriteTimeout    time.Duration // 30s
	IdleTimeout     time.Duration // 60s
	ShutdownTimeout time.Duration // 10s
}

type Server struct {
	cfg Config
	srv *http.Server
}

func New(cfg Config, handler http.Handler) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return &Server{
		cfg: cfg,
		srv: s,
	}
}

// Run serves until ctx is done, then drains for at most ShutdownTimeout.
// Hijacked websocket connections are not tracked here; the gateway closes them.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.srv.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}
