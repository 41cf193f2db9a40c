package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/errs"
)

// Broker is an in-process stand-in for a pub/sub server. Each Memory endpoint
// connected to it behaves like one gateway process.
type Broker struct {
	mu        sync.RWMutex
	endpoints map[*Memory]struct{}
}

func NewBroker() *Broker {
	return &Broker{endpoints: make(map[*Memory]struct{})}
}

// Connect attaches a new endpoint whose inbox holds up to buffer events.
func (b *Broker) Connect(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 256
	}
	m := &Memory{
		broker: b,
		inbox:  make(chan Event, buffer),
		done:   make(chan struct{}),
		refs:   make(map[domain.RoomID]int),
	}

	b.mu.Lock()
	b.endpoints[m] = struct{}{}
	b.mu.Unlock()

	return m
}

func (b *Broker) snapshot() []*Memory {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Memory, 0, len(b.endpoints))
	for m := range b.endpoints {
		out = append(out, m)
	}
	return out
}

func (b *Broker) detach(m *Memory) {
	b.mu.Lock()
	delete(b.endpoints, m)
	b.mu.Unlock()
}

// Memory is a Bus backed by a Broker.
type Memory struct {
	broker *Broker
	inbox  chan Event
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	refs map[domain.RoomID]int
}

var _ Bus = (*Memory)(nil)

// NewMemory returns an endpoint on its own private broker.
func NewMemory(buffer int) *Memory {
	return NewBroker().Connect(buffer)
}

// Peer connects another endpoint to the same broker.
func (m *Memory) Peer(buffer int) *Memory {
	return m.broker.Connect(buffer)
}

func (m *Memory) Publish(ctx context.Context, ev Event) error {
	if m.isClosed() {
		return fmt.Errorf("%w: closed", errs.ErrBusUnavailable)
	}

	for _, ep := range m.broker.snapshot() {
		if !ep.interested(ev.RoomID) {
			continue
		}
		select {
		case ep.inbox <- ev:
		case <-ep.done:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", errs.ErrBusUnavailable, ctx.Err())
		}
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, roomID domain.RoomID) error {
	if m.isClosed() {
		return fmt.Errorf("%w: closed", errs.ErrBusUnavailable)
	}
	m.mu.Lock()
	m.refs[roomID]++
	m.mu.Unlock()
	return nil
}

func (m *Memory) Unsubscribe(_ context.Context, roomID domain.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refs[roomID] <= 1 {
		delete(m.refs, roomID)
		return nil
	}
	m.refs[roomID]--
	return nil
}

// Subscribed reports whether the endpoint currently receives roomID.
func (m *Memory) Subscribed(roomID domain.RoomID) bool {
	return m.interested(roomID)
}

func (m *Memory) Listen(ctx context.Context, handle func(Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return nil
		case ev := <-m.inbox:
			handle(ev)
		}
	}
}

// Close is idempotent. The inbox is never closed; publishers select on done.
func (m *Memory) Close() error {
	m.once.Do(func() {
		close(m.done)
		m.broker.detach(m)
	})
	return nil
}

func (m *Memory) interested(roomID domain.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs[roomID] > 0
}

func (m *Memory) isClosed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}
