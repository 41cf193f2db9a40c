// Package registry tracks the live connections of one process and the rooms they joined.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/errs"
)

// ErrClosed is returned by Register after Shutdown.
var ErrClosed = errors.New("registry closed")

type ConnID string

// Conn is the transport side of a live connection.
type Conn interface {
	ID() ConnID
	Send(frame []byte) error
	Close(code int, reason string)
}

// JoinResult reports what JoinRoom changed.
type JoinResult struct {
	// Joined is false when the connection was already in the room.
	Joined bool
	// FirstLocal is true when the room had no local members before.
	FirstLocal bool
}

// LeaveResult reports what LeaveRoom changed.
type LeaveResult struct {
	// Left is false when the connection was not in the room.
	Left bool
	// LastLocal is true when the room has no local members left.
	LastLocal bool
}

// Departure describes a removed binding.
type Departure struct {
	Conn     Conn
	Identity domain.Identity
	Rooms    []RoomLeave
}

// RoomLeave is one room a departing connection was in.
type RoomLeave struct {
	RoomID    domain.RoomID
	LastLocal bool
}

type roomEntry struct {
	mu      sync.Mutex
	members map[ConnID]Conn
	dead    bool
}

// binding is the per-connection record: identity plus the rooms joined on this connection.
type binding struct {
	mu       sync.Mutex
	conn     Conn
	identity domain.Identity
	rooms    map[domain.RoomID]struct{}
	closed   bool
}

// Registry serializes mutations per connection and per room; there is no registry-wide lock.
// Lock order is binding before roomEntry.
type Registry struct {
	conns  sync.Map // ConnID -> *binding
	rooms  sync.Map // domain.RoomID -> *roomEntry
	count  atomic.Int64
	closed atomic.Bool
}

func New() *Registry {
	return &Registry{}
}

func (r *Registry) Register(c Conn, id domain.Identity) error {
	if r.closed.Load() {
		return ErrClosed
	}

	b := &binding{
		conn:     c,
		identity: id,
		rooms:    make(map[domain.RoomID]struct{}),
	}
	if _, loaded := r.conns.LoadOrStore(c.ID(), b); loaded {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateConnection, c.ID())
	}
	r.count.Add(1)

	// Shutdown may have drained the map between the check and the store.
	if r.closed.Load() {
		r.Unregister(c.ID())
		return ErrClosed
	}
	return nil
}

func (r *Registry) JoinRoom(connID ConnID, roomID domain.RoomID) (JoinResult, error) {
	b, ok := r.binding(connID)
	if !ok {
		return JoinResult{}, fmt.Errorf("%w: connection %s", errs.ErrNotAMember, connID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return JoinResult{}, fmt.Errorf("%w: connection %s", errs.ErrNotAMember, connID)
	}
	if _, joined := b.rooms[roomID]; joined {
		return JoinResult{}, nil
	}

	first := r.addMember(roomID, b.conn)
	b.rooms[roomID] = struct{}{}

	return JoinResult{Joined: true, FirstLocal: first}, nil
}

// LeaveRoom is a no-op for a room the connection is not in. It fails only for
// an unknown connection.
func (r *Registry) LeaveRoom(connID ConnID, roomID domain.RoomID) (LeaveResult, error) {
	b, ok := r.binding(connID)
	if !ok {
		return LeaveResult{}, fmt.Errorf("%w: connection %s", errs.ErrNotAMember, connID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, joined := b.rooms[roomID]; !joined || b.closed {
		return LeaveResult{}, nil
	}

	delete(b.rooms, roomID)
	last := r.removeMember(roomID, connID)

	return LeaveResult{Left: true, LastLocal: last}, nil
}

// Unregister removes the binding and all its room memberships. The second call
// for the same connection returns ok=false.
func (r *Registry) Unregister(connID ConnID) (Departure, bool) {
	v, ok := r.conns.LoadAndDelete(connID)
	if !ok {
		return Departure{}, false
	}
	r.count.Add(-1)
	b := v.(*binding)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true

	d := Departure{Conn: b.conn, Identity: b.identity}
	for roomID := range b.rooms {
		d.Rooms = append(d.Rooms, RoomLeave{
			RoomID:    roomID,
			LastLocal: r.removeMember(roomID, connID),
		})
	}
	clear(b.rooms)

	return d, true
}

// MembersOf returns a snapshot; it may be one event stale.
func (r *Registry) MembersOf(roomID domain.RoomID) []Conn {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return nil
	}
	e := v.(*roomEntry)

	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Conn, 0, len(e.members))
	for _, c := range e.members {
		out = append(out, c)
	}
	return out
}

func (r *Registry) IsJoined(connID ConnID, roomID domain.RoomID) bool {
	b, ok := r.binding(connID)
	if !ok {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, joined := b.rooms[roomID]
	return joined
}

// Rooms lists the rooms joined on connID.
func (r *Registry) Rooms(connID ConnID) []domain.RoomID {
	b, ok := r.binding(connID)
	if !ok {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.RoomID, 0, len(b.rooms))
	for id := range b.rooms {
		out = append(out, id)
	}
	return out
}

func (r *Registry) Identity(connID ConnID) (domain.Identity, bool) {
	b, ok := r.binding(connID)
	if !ok {
		return domain.Identity{}, false
	}
	return b.identity, true
}

// Len is the number of registered connections.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// RoomCount is the number of rooms with at least one local member.
func (r *Registry) RoomCount() int {
	n := 0
	r.rooms.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Shutdown refuses new registrations and unregisters every connection.
// The caller owns closing the returned connections.
func (r *Registry) Shutdown() []Departure {
	r.closed.Store(true)

	var out []Departure
	r.conns.Range(func(k, _ any) bool {
		if d, ok := r.Unregister(k.(ConnID)); ok {
			out = append(out, d)
		}
		return true
	})
	return out
}

func (r *Registry) binding(connID ConnID) (*binding, bool) {
	v, ok := r.conns.Load(connID)
	if !ok {
		return nil, false
	}
	return v.(*binding), true
}

func (r *Registry) addMember(roomID domain.RoomID, c Conn) bool {
	for {
		v, _ := r.rooms.LoadOrStore(roomID, &roomEntry{members: make(map[ConnID]Conn)})
		e := v.(*roomEntry)

		e.mu.Lock()
		if e.dead {
			// Removed concurrently by the last leaver; retry with a fresh entry.
			e.mu.Unlock()
			continue
		}
		first := len(e.members) == 0
		e.members[c.ID()] = c
		e.mu.Unlock()
		return first
	}
}

func (r *Registry) removeMember(roomID domain.RoomID, connID ConnID) bool {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return false
	}
	e := v.(*roomEntry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.members[connID]; !ok {
		return false
	}
	delete(e.members, connID)
	if len(e.members) > 0 {
		return false
	}
	e.dead = true
	r.rooms.CompareAndDelete(roomID, e)
	return true
}
