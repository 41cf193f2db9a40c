// Package gateway authenticates streaming connections and routes their room events
// through the registry, the message store and the fan-out bus.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/cwrk-planet/chat-gateway/internal/bus"
	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/errs"
	"github.com/cwrk-planet/chat-gateway/internal/registry"
)

// Close codes sent to the peer.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
	CloseAuthRejected    = 4401
)

var ErrShuttingDown = errors.New("gateway shutting down")

type Authenticator interface {
	Validate(ctx context.Context, token string) (domain.Identity, error)
}

type RoomDirectory interface {
	GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	ListMembershipsFor(ctx context.Context, userID domain.UserID) ([]domain.Room, error)
}

type MessageStore interface {
	Append(ctx context.Context, roomID domain.RoomID, senderID domain.UserID, senderName, content string) (*domain.Message, error)
}

type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	AuthRejected()
	MessagePersisted(d time.Duration)
	PersistenceFailed()
	PublishFailed()
	FramesDelivered(n int)
	EventRejected(reason string)
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened()              {}
func (noopMetrics) ConnectionClosed()              {}
func (noopMetrics) AuthRejected()                  {}
func (noopMetrics) MessagePersisted(time.Duration) {}
func (noopMetrics) PersistenceFailed()             {}
func (noopMetrics) PublishFailed()                 {}
func (noopMetrics) FramesDelivered(int)            {}
func (noopMetrics) EventRejected(string)           {}

type Options struct {
	AuthTimeout  time.Duration
	StoreTimeout time.Duration
	BusTimeout   time.Duration

	// MaxMessageLen is counted in runes.
	MaxMessageLen int
	// OpenJoin lets any authenticated user join any existing room.
	OpenJoin bool

	EventsPerSecond float64
	EventBurst      int

	InstanceID string
}

func (o *Options) setDefaults() {
	if o.AuthTimeout <= 0 {
		o.AuthTimeout = 5 * time.Second
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.BusTimeout <= 0 {
		o.BusTimeout = 2 * time.Second
	}
	if o.MaxMessageLen <= 0 {
		o.MaxMessageLen = 4000
	}
	if o.EventsPerSecond <= 0 {
		o.EventsPerSecond = 20
	}
	if o.EventBurst <= 0 {
		o.EventBurst = 40
	}
}

type Deps struct {
	Auth     Authenticator
	Rooms    RoomDirectory
	Store    MessageStore
	Bus      bus.Bus
	Registry *registry.Registry
	Metrics  Metrics
	Logger   *slog.Logger
}

type Gateway struct {
	auth    Authenticator
	rooms   RoomDirectory
	store   MessageStore
	bus     bus.Bus
	reg     *registry.Registry
	metrics Metrics
	log     *slog.Logger
	opts    Options

	closing atomic.Bool
}

func New(d Deps, opts Options) *Gateway {
	opts.setDefaults()
	if d.Metrics == nil {
		d.Metrics = noopMetrics{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Registry == nil {
		d.Registry = registry.New()
	}

	return &Gateway{
		auth:    d.Auth,
		rooms:   d.Rooms,
		store:   d.Store,
		bus:     d.Bus,
		reg:     d.Registry,
		metrics: d.Metrics,
		log:     d.Logger,
		opts:    opts,
	}
}

// Open runs the handshake for a freshly accepted connection. On any failure the
// connection is closed before Open returns; with an auth failure the close code
// is CloseAuthRejected.
func (g *Gateway) Open(ctx context.Context, conn registry.Conn, token string) (*Client, error) {
	c := &Client{gw: g, conn: conn}
	c.state.Store(int32(StateConnecting))

	if g.closing.Load() {
		c.setState(StateClosed)
		conn.Close(CloseGoingAway, "server shutting down")
		return nil, ErrShuttingDown
	}

	c.setState(StateAuthenticating)
	id, err := g.authenticate(ctx, token)
	if err != nil {
		c.setState(StateClosed)
		g.metrics.AuthRejected()
		g.log.Info("gateway.auth rejected",
			slog.String("conn_id", string(conn.ID())),
			slog.Any("err", err))
		conn.Close(CloseAuthRejected, "unauthorized")
		return nil, err
	}

	if err := g.reg.Register(conn, id); err != nil {
		c.setState(StateClosed)
		g.log.Error("gateway.register failed",
			slog.String("conn_id", string(conn.ID())),
			slog.Int64("user_id", int64(id.UserID)),
			slog.Any("err", err))
		code := CloseGoingAway
		if errors.Is(err, errs.ErrDuplicateConnection) {
			code = ClosePolicyViolation
		}
		conn.Close(code, "registration failed")
		return nil, err
	}

	c.identity = id
	c.limiter = rate.NewLimiter(rate.Limit(g.opts.EventsPerSecond), g.opts.EventBurst)
	c.log = g.log.With(
		slog.String("conn_id", string(conn.ID())),
		slog.Int64("user_id", int64(id.UserID)))
	c.setState(StateAuthenticated)
	g.metrics.ConnectionOpened()

	c.log.Debug("gateway.open authenticated")
	return c, nil
}

// authenticate bounds Validate by AuthTimeout even if the validator ignores ctx.
func (g *Gateway) authenticate(ctx context.Context, token string) (domain.Identity, error) {
	actx, cancel := context.WithTimeout(ctx, g.opts.AuthTimeout)
	defer cancel()

	type result struct {
		id  domain.Identity
		err error
	}
	ch := make(chan result, 1)
	go func() {
		id, err := g.auth.Validate(actx, token)
		ch <- result{id: id, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			if errors.Is(r.err, errs.ErrAuthRejected) {
				return domain.Identity{}, r.err
			}
			return domain.Identity{}, fmt.Errorf("%w: %v", errs.ErrAuthRejected, r.err)
		}
		return r.id, nil
	case <-actx.Done():
		return domain.Identity{}, fmt.Errorf("%w: handshake: %v", errs.ErrAuthRejected, actx.Err())
	}
}

// Run delivers bus events to local room members until ctx is done or the bus closes.
func (g *Gateway) Run(ctx context.Context) error {
	g.log.Info("gateway.run started", slog.String("instance_id", g.opts.InstanceID))
	err := g.bus.Listen(ctx, g.dispatch)
	if err != nil && !errors.Is(err, context.Canceled) {
		g.log.Error("gateway.run stopped", slog.Any("err", err))
		return err
	}
	g.log.Info("gateway.run stopped")
	return nil
}

func (g *Gateway) dispatch(ev bus.Event) {
	delivered := 0
	for _, m := range g.reg.MembersOf(ev.RoomID) {
		if err := m.Send(ev.Frame); err != nil {
			g.log.Debug("gateway.dispatch send failed",
				slog.String("conn_id", string(m.ID())),
				slog.Int64("room_id", int64(ev.RoomID)),
				slog.Any("err", err))
			continue
		}
		delivered++
	}
	g.metrics.FramesDelivered(delivered)
}

// Shutdown stops accepting connections, announces every departure and closes
// every connection with CloseGoingAway. It does not close the bus.
func (g *Gateway) Shutdown(ctx context.Context) {
	g.closing.Store(true)

	deps := g.reg.Shutdown()
	for _, d := range deps {
		g.metrics.ConnectionClosed()
		g.depart(ctx, d)
		d.Conn.Close(CloseGoingAway, "server shutting down")
	}
	g.log.Info("gateway.shutdown done", slog.Int("connections", len(deps)))
}

// Connections is the number of authenticated connections on this process.
func (g *Gateway) Connections() int {
	return g.reg.Len()
}

// depart emits user-leaved for every room of d and drops the bus interest.
// It runs even when ctx is already canceled.
func (g *Gateway) depart(ctx context.Context, d registry.Departure) {
	ctx = context.WithoutCancel(ctx)
	user := userOf(d.Identity)
	for _, r := range d.Rooms {
		_ = g.publish(ctx, r.RoomID, UserLeft{User: user, RoomID: r.RoomID})
		g.unsubscribe(ctx, r.RoomID)
	}
}

func (g *Gateway) publish(ctx context.Context, roomID domain.RoomID, ev Outbound) error {
	frame, err := EncodeOutbound(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Name(), err)
	}

	bctx, cancel := context.WithTimeout(ctx, g.opts.BusTimeout)
	defer cancel()
	err = g.bus.Publish(bctx, bus.Event{RoomID: roomID, Frame: frame, Origin: g.opts.InstanceID})
	if err != nil {
		g.metrics.PublishFailed()
		g.log.Warn("gateway.publish failed",
			slog.String("event", string(ev.Name())),
			slog.Int64("room_id", int64(roomID)),
			slog.Any("err", err))
		if !errors.Is(err, errs.ErrBusUnavailable) {
			err = fmt.Errorf("%w: %v", errs.ErrBusUnavailable, err)
		}
		return err
	}
	return nil
}

func (g *Gateway) subscribe(ctx context.Context, roomID domain.RoomID) error {
	bctx, cancel := context.WithTimeout(ctx, g.opts.BusTimeout)
	defer cancel()
	return g.bus.Subscribe(bctx, roomID)
}

func (g *Gateway) unsubscribe(ctx context.Context, roomID domain.RoomID) {
	bctx, cancel := context.WithTimeout(ctx, g.opts.BusTimeout)
	defer cancel()
	if err := g.bus.Unsubscribe(bctx, roomID); err != nil {
		g.log.Warn("gateway.unsubscribe failed",
			slog.Int64("room_id", int64(roomID)),
			slog.Any("err", err))
	}
}
