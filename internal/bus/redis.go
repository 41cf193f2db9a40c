package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/errs"
)

const DefaultChannelPrefix = "chat:"

const (
	messageBuffer  = 256
	receiveBackoff = 200 * time.Millisecond
)

type RedisConfig struct {
	URL           string
	ChannelPrefix string
	// InstanceID is stamped as Origin on published events.
	InstanceID string
}

// Redis is a Bus over Redis Pub/Sub. All room channels of a process share one
// subscriber connection.
type Redis struct {
	client *redis.Client
	pubsub *redis.PubSub
	prefix string
	origin string
	log    *slog.Logger

	mu   sync.Mutex
	refs map[domain.RoomID]int

	// pending holds the first Subscribe of a channel until the server confirms it.
	pmu     sync.Mutex
	pending map[string]chan struct{}

	recvOnce  sync.Once
	msgs      chan *redis.Message
	listening atomic.Bool
	done      chan struct{}

	closeOnce sync.Once
	closeErr  error
}

var _ Bus = (*Redis)(nil)

type envelope struct {
	RoomID int64           `json:"room_id"`
	Origin string          `json:"origin"`
	Frame  json.RawMessage `json:"frame"`
}

func NewRedis(cfg RedisConfig, log *slog.Logger) (*Redis, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis bus: url is not set")
	}
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis bus: parse url: %w", err)
	}
	c := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis bus: ping: %w", err)
	}

	return newRedis(c, cfg, log), nil
}

func newRedis(c *redis.Client, cfg RedisConfig, log *slog.Logger) *Redis {
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = DefaultChannelPrefix
	}
	if log == nil {
		log = slog.Default()
	}

	return &Redis{
		client: c,
		// No channels yet; rooms are added as local members join.
		pubsub:  c.Subscribe(context.Background()),
		prefix:  cfg.ChannelPrefix,
		origin:  cfg.InstanceID,
		log:     log,
		refs:    make(map[domain.RoomID]int),
		pending: make(map[string]chan struct{}),
		msgs:    make(chan *redis.Message, messageBuffer),
		done:    make(chan struct{}),
	}
}

func (r *Redis) Publish(ctx context.Context, ev Event) error {
	if ev.Origin == "" {
		ev.Origin = r.origin
	}
	payload, err := encodeEnvelope(ev)
	if err != nil {
		return fmt.Errorf("redis bus: encode: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(ev.RoomID), payload).Err(); err != nil {
		return fmt.Errorf("%w: publish: %v", errs.ErrBusUnavailable, err)
	}
	return nil
}

// Subscribe waits for the server to confirm a room's first subscription while
// Listen is running, so an event published right after it returns is delivered.
// An unconfirmed subscription is kept and logged when ctx ends first.
func (r *Redis) Subscribe(ctx context.Context, roomID domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refs[roomID] > 0 {
		r.refs[roomID]++
		return nil
	}

	ch := r.channel(roomID)
	var confirmed <-chan struct{}
	if r.listening.Load() {
		confirmed = r.expect(ch)
	}
	if err := r.pubsub.Subscribe(ctx, ch); err != nil {
		r.forget(ch)
		// go-redis remembers the channel even when the write failed.
		_ = r.pubsub.Unsubscribe(context.WithoutCancel(ctx), ch)
		return fmt.Errorf("%w: subscribe: %v", errs.ErrBusUnavailable, err)
	}
	r.refs[roomID] = 1

	if confirmed != nil {
		select {
		case <-confirmed:
		case <-ctx.Done():
			r.forget(ch)
			r.log.Warn("bus.redis.subscribe unconfirmed",
				slog.String("channel", ch),
				slog.Any("err", ctx.Err()))
		}
	}
	return nil
}

func (r *Redis) Unsubscribe(ctx context.Context, roomID domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch n := r.refs[roomID]; {
	case n == 0:
		return nil
	case n > 1:
		r.refs[roomID]--
		return nil
	}

	delete(r.refs, roomID)
	if err := r.pubsub.Unsubscribe(ctx, r.channel(roomID)); err != nil {
		return fmt.Errorf("%w: unsubscribe: %v", errs.ErrBusUnavailable, err)
	}
	return nil
}

// Listen starts the receive loop on first use. The loop outlives ctx and stops
// on Close.
func (r *Redis) Listen(ctx context.Context, handle func(Event)) error {
	r.recvOnce.Do(func() { go r.receive() })
	r.listening.Store(true)
	defer r.listening.Store(false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-r.msgs:
			if !ok {
				return nil
			}
			if ev, ok := r.decode(msg); ok {
				handle(ev)
			}
		}
	}
}

// receive reads the subscriber connection. Subscription confirmations are
// consumed here and messages are handed to Listen.
func (r *Redis) receive() {
	defer close(r.msgs)

	for {
		v, err := r.pubsub.Receive(context.Background())
		if err != nil {
			if r.closed() || errors.Is(err, redis.ErrClosed) {
				return
			}
			r.log.Warn("bus.redis.receive failed", slog.Any("err", err))
			select {
			case <-r.done:
				return
			case <-time.After(receiveBackoff):
			}
			continue
		}

		switch m := v.(type) {
		case *redis.Subscription:
			if m.Kind == "subscribe" {
				r.confirm(m.Channel)
			}
		case *redis.Message:
			select {
			case r.msgs <- m:
			case <-r.done:
				return
			}
		}
	}
}

func (r *Redis) decode(msg *redis.Message) (Event, bool) {
	ev, err := decodeEnvelope([]byte(msg.Payload))
	if err != nil {
		r.log.Warn("bus.redis.decode failed",
			slog.String("channel", msg.Channel),
			slog.Any("err", err))
		return Event{}, false
	}
	if room, ok := roomFromChannel(r.prefix, msg.Channel); ok && room != ev.RoomID {
		r.log.Warn("bus.redis.room mismatch",
			slog.String("channel", msg.Channel),
			slog.Int64("room_id", int64(ev.RoomID)))
		return Event{}, false
	}
	return ev, true
}

func (r *Redis) expect(channel string) <-chan struct{} {
	ch := make(chan struct{})
	r.pmu.Lock()
	r.pending[channel] = ch
	r.pmu.Unlock()
	return ch
}

func (r *Redis) forget(channel string) {
	r.pmu.Lock()
	delete(r.pending, channel)
	r.pmu.Unlock()
}

func (r *Redis) confirm(channel string) {
	r.pmu.Lock()
	ch, ok := r.pending[channel]
	delete(r.pending, channel)
	r.pmu.Unlock()
	if ok {
		close(ch)
	}
}

func (r *Redis) closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *Redis) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.closeErr = errors.Join(r.pubsub.Close(), r.client.Close())
	})
	return r.closeErr
}

func (r *Redis) channel(roomID domain.RoomID) string {
	return channelName(r.prefix, roomID)
}

func channelName(prefix string, roomID domain.RoomID) string {
	return prefix + "room:" + strconv.FormatInt(int64(roomID), 10)
}

// roomFromChannel is the inverse of channelName.
func roomFromChannel(prefix, channel string) (domain.RoomID, bool) {
	rest, ok := strings.CutPrefix(channel, prefix+"room:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return domain.RoomID(id), true
}

func encodeEnvelope(ev Event) ([]byte, error) {
	return json.Marshal(envelope{
		RoomID: int64(ev.RoomID),
		Origin: ev.Origin,
		Frame:  ev.Frame,
	})
}

func decodeEnvelope(b []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Event{}, err
	}
	if env.RoomID <= 0 || len(env.Frame) == 0 {
		return Event{}, errors.New("incomplete envelope")
	}
	return Event{
		RoomID: domain.RoomID(env.RoomID),
		Frame:  env.Frame,
		Origin: env.Origin,
	}, nil
}
