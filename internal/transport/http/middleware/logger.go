package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cwrk-planet/chat-gateway/pkg/httputil"
	"github.com/cwrk-planet/chat-gateway/pkg/logger"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// WithRequestLogger stores a request-scoped logger for logger.FromContext.
func WithRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID, _ := httputil.RequestIDFromContext(r.Context())
		l := logger.L().With(
			slog.String("req_id", reqID),
			slog.String("path", r.URL.Path),
			slog.String("method", r.Method),
		)
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), l)))
	})
}

// RequestLogger logs one line per request. The wrapped writer does not
// implement http.Hijacker, so upgrade routes must be mounted outside it.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		next.ServeHTTP(sw, r)

		level := slog.LevelInfo
		switch {
		case sw.status >= 500:
			level = slog.LevelError
		case sw.status >= 400:
			level = slog.LevelWarn
		}

		logger.FromContext(r.Context()).LogAttrs(
			r.Context(),
			level,
			"http_request",
			slog.Int("status", sw.status),
			slog.Int64("bytes", sw.bytes),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_ip", r.RemoteAddr),
			slog.String("user_agent", r.UserAgent()),
			slog.String("query", r.URL.RawQuery),
		)
	})
}
