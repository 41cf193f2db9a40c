package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Inbound
	}{
		{"join all no data", `{"event":"join-all-rooms"}`, JoinAllRooms{}},
		{"join all empty", `{"event":"join-all-rooms","data":{}}`, JoinAllRooms{}},
		{"join", `{"event":"join-room","data":{"roomId":3}}`, JoinRoom{RoomID: 3}},
		{"join with legacy fields", `{"event":"join-room","data":{"roomId":3,"roomName":"general","currentUser":{"id":9}}}`, JoinRoom{RoomID: 3}},
		{"leave", `{"event":"leave-room","data":{"roomId":4}}`, LeaveRoom{RoomID: 4}},
		{"deleted", `{"event":"room-deleted","data":{"roomId":5}}`, RoomDeleted{RoomID: 5}},
		{"send", `{"event":"send-message","data":{"roomId":1,"message":" hi "}}`, SendMessage{RoomID: 1, Message: " hi "}},
		{"send empty message", `{"event":"send-message","data":{"roomId":1,"message":""}}`, SendMessage{RoomID: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInbound([]byte(tt.in))
			if err != nil {
				t.Fatalf("DecodeInbound: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeInbound_Rejects(t *testing.T) {
	for _, in := range []string{
		``,
		`[]`,
		`{"data":{}}`,
		`{"event":"new-user-joined","data":{}}`,
		`{"event":"typing","data":{}}`,
		`{"event":"join-all-rooms","data":[1]}`,
		`{"event":"join-room","data":{}}`,
		`{"event":"join-room","data":{"roomId":0}}`,
		`{"event":"join-room","data":{"roomId":"1"}}`,
		`{"event":"leave-room"}`,
		`{"event":"send-message","data":{"roomId":1}}`,
		`{"event":"send-message","data":{"message":"x"}}`,
		`{"event":"send-message","data":{"roomId":1,"message":7}}`,
	} {
		if _, err := DecodeInbound([]byte(in)); !errors.Is(err, ErrBadEvent) {
			t.Errorf("DecodeInbound(%s) err = %v, want ErrBadEvent", in, err)
		}
	}
}

func TestEncodeOutbound(t *testing.T) {
	u := User{ID: 1, Name: "A", Email: "a@x.io"}
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		ev   Outbound
		want string
	}{
		{UserJoined{User: u, RoomID: 2},
			`{"event":"new-user-joined","data":{"user":{"id":1,"name":"A","email":"a@x.io"},"roomId":2}}`},
		{UserLeft{User: u, RoomID: 2},
			`{"event":"user-leaved","data":{"user":{"id":1,"name":"A","email":"a@x.io"},"room_id":2}}`},
		{ReceiveMessage{Sender: u, RoomID: 2, Message: "hi", MessageID: 10, SentAt: at},
			`{"event":"receive-message","data":{"sender":{"id":1,"name":"A","email":"a@x.io"},"roomId":2,"message":"hi","messageId":10,"sentAt":"2025-01-02T03:04:05Z"}}`},
		{MessageSent{RoomID: 2, MessageID: 10, SentAt: at},
			`{"event":"message-sent","data":{"roomId":2,"messageId":10,"sentAt":"2025-01-02T03:04:05Z"}}`},
		{ErrorEvent{Code: CodeBadEvent, Message: "nope"},
			`{"event":"error","data":{"code":"bad_event","message":"nope"}}`},
	}
	for _, tt := range tests {
		got, err := EncodeOutbound(tt.ev)
		if err != nil {
			t.Fatalf("EncodeOutbound(%T): %v", tt.ev, err)
		}
		if string(got) != tt.want {
			t.Errorf("EncodeOutbound(%T)\n got %s\nwant %s", tt.ev, got, tt.want)
		}
	}
}

func TestUserOf(t *testing.T) {
	u := userOf(domain.Identity{UserID: 4, Name: "n", Email: "e"})
	if u != (User{ID: 4, Name: "n", Email: "e"}) {
		t.Fatalf("userOf = %+v", u)
	}
}
