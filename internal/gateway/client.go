package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/errs"
	"github.com/cwrk-planet/chat-gateway/internal/registry"
	"github.com/cwrk-planet/chat-gateway/internal/repository"
)

var ErrNotAuthenticated = errors.New("connection is not authenticated")

type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Client is one authenticated connection. Handle must be called from a single
// goroutine per client; Close may be called from any goroutine, any number of times.
type Client struct {
	gw       *Gateway
	conn     registry.Conn
	identity domain.Identity
	limiter  *rate.Limiter
	log      *slog.Logger

	state     atomic.Int32
	closeOnce sync.Once
}

func (c *Client) ID() registry.ConnID { return c.conn.ID() }

func (c *Client) Identity() domain.Identity { return c.identity }

func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) { c.state.Store(int32(s)) }

// HandleRaw decodes one frame and handles it. A malformed frame is answered
// with a bad_event error and otherwise ignored. Every frame counts against the
// rate limit, malformed ones included.
func (c *Client) HandleRaw(ctx context.Context, data []byte) error {
	if ok, err := c.admit(); !ok {
		return err
	}
	ev, err := DecodeInbound(data)
	if err != nil {
		c.reject(CodeBadEvent, err.Error(), 0)
		return err
	}
	return c.handle(ctx, ev)
}

// Handle processes one inbound event. Errors describe the failed action only;
// the connection stays usable.
func (c *Client) Handle(ctx context.Context, ev Inbound) error {
	if ok, err := c.admit(); !ok {
		return err
	}
	return c.handle(ctx, ev)
}

// admit reports whether the connection may process one more event.
func (c *Client) admit() (bool, error) {
	if c.State() != StateAuthenticated {
		return false, ErrNotAuthenticated
	}
	if !c.limiter.Allow() {
		c.reject(CodeRateLimited, "too many events", 0)
		return false, nil
	}
	return true, nil
}

func (c *Client) handle(ctx context.Context, ev Inbound) error {
	switch e := ev.(type) {
	case JoinAllRooms:
		return c.joinAll(ctx)
	case JoinRoom:
		return c.join(ctx, e.RoomID)
	case LeaveRoom:
		return c.leave(ctx, e.RoomID)
	case RoomDeleted:
		return c.leave(ctx, e.RoomID)
	case SendMessage:
		return c.send(ctx, e)
	default:
		return fmt.Errorf("%w: unsupported %T", ErrBadEvent, ev)
	}
}

func (c *Client) join(ctx context.Context, roomID domain.RoomID) error {
	if c.gw.reg.IsJoined(c.ID(), roomID) {
		return nil
	}

	sctx, cancel := context.WithTimeout(ctx, c.gw.opts.StoreTimeout)
	room, err := c.gw.rooms.GetByID(sctx, roomID)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, errs.ErrRoomNotFound) {
			c.reject(CodeRoomNotFound, "room not found", roomID)
			return fmt.Errorf("%w: %d", errs.ErrRoomNotFound, roomID)
		}
		c.log.Error("gateway.join.getRoom failed", slog.Int64("room_id", int64(roomID)), slog.Any("err", err))
		c.reject(CodePersistence, "could not load room", roomID)
		return fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}

	if !c.gw.opts.OpenJoin && !room.IsMember(c.identity.UserID) {
		c.reject(CodeNotAMember, "join the room first", roomID)
		return fmt.Errorf("%w: room %d", errs.ErrNotAMember, roomID)
	}

	return c.wire(ctx, roomID)
}

func (c *Client) joinAll(ctx context.Context) error {
	sctx, cancel := context.WithTimeout(ctx, c.gw.opts.StoreTimeout)
	rooms, err := c.gw.rooms.ListMembershipsFor(sctx, c.identity.UserID)
	cancel()
	if err != nil {
		c.log.Error("gateway.joinAll.listMemberships failed", slog.Any("err", err))
		c.reject(CodePersistence, "could not load rooms", 0)
		return fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}

	var failed []error
	for _, r := range rooms {
		if err := c.wire(ctx, r.ID); err != nil {
			failed = append(failed, err)
		}
	}
	return errors.Join(failed...)
}

// wire adds the room to the binding, makes sure the bus carries it and
// announces the arrival. Joining twice is a no-op.
//
// The bus reference is taken before the binding records the room. Once recorded
// the binding owns it, so a concurrent Unregister releases it exactly once.
func (c *Client) wire(ctx context.Context, roomID domain.RoomID) error {
	if err := c.gw.subscribe(ctx, roomID); err != nil {
		c.log.Warn("gateway.join.subscribe failed", slog.Int64("room_id", int64(roomID)), slog.Any("err", err))
		return err
	}

	res, err := c.gw.reg.JoinRoom(c.ID(), roomID)
	if err != nil || !res.Joined {
		c.gw.unsubscribe(ctx, roomID)
		return err
	}
	c.log.Debug("gateway.join",
		slog.Int64("room_id", int64(roomID)),
		slog.Bool("first_local", res.FirstLocal))

	_ = c.gw.publish(ctx, roomID, UserJoined{User: userOf(c.identity), RoomID: roomID})
	return nil
}

// leave ignores rooms this connection never joined.
func (c *Client) leave(ctx context.Context, roomID domain.RoomID) error {
	res, err := c.gw.reg.LeaveRoom(c.ID(), roomID)
	if err != nil || !res.Left {
		c.gw.metrics.EventRejected(CodeNotAMember)
		return nil
	}
	c.log.Debug("gateway.leave",
		slog.Int64("room_id", int64(roomID)),
		slog.Bool("last_local", res.LastLocal))

	_ = c.gw.publish(ctx, roomID, UserLeft{User: userOf(c.identity), RoomID: roomID})
	c.gw.unsubscribe(ctx, roomID)
	return nil
}

func (c *Client) send(ctx context.Context, e SendMessage) error {
	text := strings.TrimSpace(e.Message)
	if text == "" {
		c.gw.metrics.EventRejected("empty_message")
		return nil
	}
	if !c.gw.reg.IsJoined(c.ID(), e.RoomID) {
		c.gw.metrics.EventRejected("not_joined")
		return nil
	}
	if utf8.RuneCountInString(text) > c.gw.opts.MaxMessageLen {
		c.reject(CodeMessageTooLong, fmt.Sprintf("message exceeds %d characters", c.gw.opts.MaxMessageLen), e.RoomID)
		return errs.ErrMessageTooLong
	}

	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, c.gw.opts.StoreTimeout)
	msg, err := c.gw.store.Append(sctx, e.RoomID, c.identity.UserID, c.identity.Name, text)
	cancel()
	if err != nil {
		c.gw.metrics.PersistenceFailed()
		c.log.Error("gateway.send.append failed", slog.Int64("room_id", int64(e.RoomID)), slog.Any("err", err))
		c.reject(CodePersistence, "message was not saved", e.RoomID)
		return fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	c.gw.metrics.MessagePersisted(time.Since(start))

	// The message is stored; a bus failure only costs live delivery.
	_ = c.gw.publish(ctx, e.RoomID, ReceiveMessage{
		Sender:    userOf(c.identity),
		RoomID:    msg.RoomID,
		Message:   msg.Content,
		MessageID: msg.ID,
		SentAt:    msg.CreatedAt,
	})

	c.direct(MessageSent{RoomID: msg.RoomID, MessageID: msg.ID, SentAt: msg.CreatedAt})
	return nil
}

// Close unregisters the connection, announces its departure from every joined
// room and closes the transport. Only the first call does anything.
func (c *Client) Close(ctx context.Context) {
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		if d, ok := c.gw.reg.Unregister(c.ID()); ok {
			c.gw.metrics.ConnectionClosed()
			c.gw.depart(ctx, d)
		}
		c.conn.Close(CloseNormal, "")
		c.log.Debug("gateway.close done")
	})
}

func (c *Client) reject(code, msg string, roomID domain.RoomID) {
	c.gw.metrics.EventRejected(code)
	c.direct(ErrorEvent{Code: code, Message: msg, RoomID: roomID})
}

// direct sends ev to this connection only.
func (c *Client) direct(ev Outbound) {
	frame, err := EncodeOutbound(ev)
	if err != nil {
		c.log.Error("gateway.encode failed", slog.String("event", string(ev.Name())), slog.Any("err", err))
		return
	}
	if err := c.conn.Send(frame); err != nil {
		c.log.Debug("gateway.send direct failed", slog.String("event", string(ev.Name())), slog.Any("err", err))
	}
}
