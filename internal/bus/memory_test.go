package bus

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/errs"
)

func collect(t *testing.T, b Bus, n int) []Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []Event
	_ = b.Listen(ctx, func(ev Event) {
		got = append(got, ev)
		if len(got) == n {
			cancel()
		}
	})
	if len(got) != n {
		t.Fatalf("received %d events, want %d", len(got), n)
	}
	return got
}

func TestMemory_DeliversToSubscribedEndpointsOnly(t *testing.T) {
	ctx := context.Background()
	a := NewMemory(16)
	b := a.Peer(16)
	c := a.Peer(16)
	defer a.Close()
	defer b.Close()
	defer c.Close()

	_ = a.Subscribe(ctx, 1)
	_ = b.Subscribe(ctx, 1)
	_ = c.Subscribe(ctx, 2)

	if err := a.Publish(ctx, Event{RoomID: 1, Frame: []byte(`{"n":1}`), Origin: "a"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for _, ep := range []*Memory{a, b} {
		got := collect(t, ep, 1)
		if got[0].RoomID != 1 || string(got[0].Frame) != `{"n":1}` || got[0].Origin != "a" {
			t.Fatalf("event = %+v", got[0])
		}
	}
	if len(c.inbox) != 0 {
		t.Fatalf("unsubscribed endpoint got %d events", len(c.inbox))
	}
}

func TestMemory_PerRoomOrder(t *testing.T) {
	ctx := context.Background()
	a := NewMemory(64)
	b := a.Peer(64)
	_ = b.Subscribe(ctx, 3)

	const n = 50
	for i := range n {
		if err := a.Publish(ctx, Event{RoomID: 3, Frame: []byte(fmt.Sprint(i))}); err != nil {
			t.Fatal(err)
		}
	}

	got := collect(t, b, n)
	for i, ev := range got {
		if string(ev.Frame) != fmt.Sprint(i) {
			t.Fatalf("event %d = %s", i, ev.Frame)
		}
	}
}

func TestMemory_RefCounting(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(4)

	_ = m.Subscribe(ctx, 1)
	_ = m.Subscribe(ctx, 1)
	_ = m.Unsubscribe(ctx, 1)
	if !m.Subscribed(1) {
		t.Fatal("unsubscribed while a reference remains")
	}
	_ = m.Unsubscribe(ctx, 1)
	if m.Subscribed(1) {
		t.Fatal("still subscribed after last reference")
	}
	// Extra unsubscribe is a no-op.
	if err := m.Unsubscribe(ctx, 1); err != nil {
		t.Fatal(err)
	}
	_ = m.Subscribe(ctx, 1)
	if !m.Subscribed(1) {
		t.Fatal("resubscribe failed")
	}
}

func TestMemory_ClosedIsUnavailable(t *testing.T) {
	m := NewMemory(1)
	_ = m.Close()
	_ = m.Close()

	err := m.Publish(context.Background(), Event{RoomID: 1, Frame: []byte("{}")})
	if !errors.Is(err, errs.ErrBusUnavailable) {
		t.Fatalf("err = %v, want ErrBusUnavailable", err)
	}
	if err := m.Listen(context.Background(), func(Event) {}); err != nil {
		t.Fatalf("Listen on closed bus = %v, want nil", err)
	}
}

func TestMemory_FullInboxTimesOut(t *testing.T) {
	a := NewMemory(1)
	b := a.Peer(1)
	_ = b.Subscribe(context.Background(), 1)

	_ = a.Publish(context.Background(), Event{RoomID: 1, Frame: []byte("1")})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := a.Publish(ctx, Event{RoomID: 1, Frame: []byte("2")})
	if !errors.Is(err, errs.ErrBusUnavailable) {
		t.Fatalf("err = %v, want ErrBusUnavailable", err)
	}
}

func TestMemory_ClosedPeerDoesNotBlock(t *testing.T) {
	a := NewMemory(1)
	b := a.Peer(1)
	_ = b.Subscribe(context.Background(), 1)
	_ = a.Publish(context.Background(), Event{RoomID: 1, Frame: []byte("1")})
	_ = b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Publish(ctx, Event{RoomID: 1, Frame: []byte("2")}); err != nil {
		t.Fatalf("Publish after peer closed: %v", err)
	}
}
