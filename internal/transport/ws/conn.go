package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cwrk-planet/chat-gateway/internal/gateway"
	"github.com/cwrk-planet/chat-gateway/internal/registry"
)

var (
	ErrConnClosed   = errors.New("connection closed")
	ErrSlowConsumer = errors.New("send buffer full")
)

// wsConn is the registry-facing side of one websocket. All writes happen on
// the write loop; Send and Close only hand work to it.
type wsConn struct {
	id   registry.ConnID
	conn *websocket.Conn

	send   chan []byte
	closed chan struct{}
	once   sync.Once

	// set once, before closed is closed
	closeCode   int
	closeReason string
}

func newWsConn(c *websocket.Conn, buffer int) *wsConn {
	return &wsConn{
		id:     registry.ConnID(uuid.NewString()),
		conn:   c,
		send:   make(chan []byte, buffer),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) ID() registry.ConnID { return c.id }

// Send never blocks. A peer that cannot keep up is disconnected.
func (c *wsConn) Send(frame []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.closed:
		return ErrConnClosed
	default:
		c.Close(gateway.CloseGoingAway, "send buffer full")
		return ErrSlowConsumer
	}
}

func (c *wsConn) Close(code int, reason string) {
	c.once.Do(func() {
		c.closeCode, c.closeReason = code, reason
		close(c.closed)
	})
}

func (c *wsConn) Done() <-chan struct{} { return c.closed }

func (c *wsConn) writeLoop(pingEvery, writeWait time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	defer func() { _ = c.conn.Close() }()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame, writeWait); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.closed:
			c.flush(writeWait)
			if c.closeCode != websocket.CloseAbnormalClosure {
				msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
				_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			}
			return
		}
	}
}

// flush writes frames queued before Close, e.g. the error frame preceding a policy close.
func (c *wsConn) flush(writeWait time.Duration) {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame, writeWait); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *wsConn) write(frame []byte, writeWait time.Duration) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}
