// Package ws adapts gorilla websocket connections to the gateway.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cwrk-planet/chat-gateway/internal/gateway"
	"github.com/cwrk-planet/chat-gateway/internal/registry"
	"github.com/cwrk-planet/chat-gateway/pkg/httputil"
	"github.com/cwrk-planet/chat-gateway/pkg/logger"
)

type Gateway interface {
	Open(ctx context.Context, conn registry.Conn, token string) (*gateway.Client, error)
}

type Config struct {
	CookieName     string
	AllowedOrigins []string // empty allows same-host only
	PingEvery      time.Duration
	WriteWait      time.Duration
	ReadLimit      int64
	SendBuffer     int
}

func (c *Config) setDefaults() {
	if c.CookieName == "" {
		c.CookieName = "sessionId"
	}
	if c.PingEvery <= 0 {
		c.PingEvery = 15 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 64 << 10
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 128
	}
}

type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	gw       Gateway
	log      *slog.Logger
}

func NewServer(gw Gateway, cfg Config, log *slog.Logger) *Server {
	cfg.setDefaults()
	if log == nil {
		log = logger.L()
	}

	s := &Server{cfg: cfg, gw: gw, log: log.With(slog.String("component", "ws"))}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.HandleWS(w, r) }

// HandleWS upgrades first and authenticates after, so a rejected token is
// reported with close code 4401 rather than an HTTP status.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := httputil.SessionToken(r, s.cfg.CookieName)

	wc, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", slog.Any("err", err))
		return
	}

	c := newWsConn(wc, s.cfg.SendBuffer)
	go c.writeLoop(s.cfg.PingEvery, s.cfg.WriteWait)

	// request ctx may be canceled once the handler is hijacked; keep values only
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	if id, ok := httputil.RequestIDFromContext(r.Context()); ok {
		ctx = logger.WithContext(ctx, s.log.With(slog.String("req_id", id)))
	}

	client, err := s.gw.Open(ctx, c, token)
	if err != nil {
		s.log.Debug("ws open rejected", slog.String("conn", string(c.ID())), slog.Any("err", err))
		s.drainUntilClosed(c)
		return
	}
	defer client.Close(ctx)

	s.readLoop(ctx, c, client)
}

func (s *Server) readLoop(ctx context.Context, c *wsConn, client *gateway.Client) {
	c.conn.SetReadLimit(s.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingEvery))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("ws read failed", slog.String("conn", string(c.ID())), slog.Any("err", err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		// failures were already reported to the peer as error frames
		_ = client.HandleRaw(ctx, data)

		select {
		case <-c.Done():
			return
		default:
		}
	}
}

// drainUntilClosed lets the write loop deliver the close frame and waits
// for the peer to go away.
func (s *Server) drainUntilClosed(c *wsConn) {
	_ = c.conn.SetReadDeadline(time.Now().Add(s.cfg.WriteWait))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.cfg.AllowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	return slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin)
}
