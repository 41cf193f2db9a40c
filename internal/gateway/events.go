package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
)

// ErrBadEvent wraps every frame DecodeInbound refuses.
var ErrBadEvent = errors.New("bad event")

type EventName string

// Inbound.
const (
	EventJoinAllRooms EventName = "join-all-rooms"
	EventJoinRoom     EventName = "join-room"
	EventLeaveRoom    EventName = "leave-room"
	EventRoomDeleted  EventName = "room-deleted"
	EventSendMessage  EventName = "send-message"
)

// Outbound.
const (
	EventNewUserJoined  EventName = "new-user-joined"
	EventUserLeaved     EventName = "user-leaved"
	EventReceiveMessage EventName = "receive-message"
	EventMessageSent    EventName = "message-sent"
	EventError          EventName = "error"
)

// Error codes carried by the error event.
const (
	CodePersistence    = "persistence_error"
	CodeBadEvent       = "bad_event"
	CodeMessageTooLong = "message_too_long"
	CodeRateLimited    = "rate_limited"
	CodeRoomNotFound   = "room_not_found"
	CodeNotAMember     = "not_a_member"
)

// Inbound is a client event. The set of implementations is closed.
type Inbound interface {
	Name() EventName
	inbound()
}

type JoinAllRooms struct{}

type JoinRoom struct{ RoomID domain.RoomID }

type LeaveRoom struct{ RoomID domain.RoomID }

type RoomDeleted struct{ RoomID domain.RoomID }

type SendMessage struct {
	RoomID  domain.RoomID
	Message string
}

func (JoinAllRooms) Name() EventName { return EventJoinAllRooms }
func (JoinRoom) Name() EventName     { return EventJoinRoom }
func (LeaveRoom) Name() EventName    { return EventLeaveRoom }
func (RoomDeleted) Name() EventName  { return EventRoomDeleted }
func (SendMessage) Name() EventName  { return EventSendMessage }

func (JoinAllRooms) inbound() {}
func (JoinRoom) inbound()     {}
func (LeaveRoom) inbound()    {}
func (RoomDeleted) inbound()  {}
func (SendMessage) inbound()  {}

// Outbound is a server event; its JSON encoding is the frame's data.
type Outbound interface {
	Name() EventName
	outbound()
}

// User is the public part of an identity.
type User struct {
	ID    domain.UserID `json:"id"`
	Name  string        `json:"name"`
	Email string        `json:"email"`
}

func userOf(id domain.Identity) User {
	return User{ID: id.UserID, Name: id.Name, Email: id.Email}
}

type UserJoined struct {
	User   User          `json:"user"`
	RoomID domain.RoomID `json:"roomId"`
}

type UserLeft struct {
	User   User          `json:"user"`
	RoomID domain.RoomID `json:"room_id"`
}

type ReceiveMessage struct {
	Sender    User             `json:"sender"`
	RoomID    domain.RoomID    `json:"roomId"`
	Message   string           `json:"message"`
	MessageID domain.MessageID `json:"messageId"`
	SentAt    time.Time        `json:"sentAt"`
}

// MessageSent acknowledges a persisted message to its sender.
type MessageSent struct {
	RoomID    domain.RoomID    `json:"roomId"`
	MessageID domain.MessageID `json:"messageId"`
	SentAt    time.Time        `json:"sentAt"`
}

type ErrorEvent struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	RoomID  domain.RoomID `json:"roomId,omitempty"`
}

func (UserJoined) Name() EventName     { return EventNewUserJoined }
func (UserLeft) Name() EventName       { return EventUserLeaved }
func (ReceiveMessage) Name() EventName { return EventReceiveMessage }
func (MessageSent) Name() EventName    { return EventMessageSent }
func (ErrorEvent) Name() EventName     { return EventError }

func (UserJoined) outbound()     {}
func (UserLeft) outbound()       {}
func (ReceiveMessage) outbound() {}
func (MessageSent) outbound()    {}
func (ErrorEvent) outbound()     {}

type frame struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type roomPayload struct {
	RoomID *int64 `json:"roomId"`
}

type sendPayload struct {
	RoomID  *int64  `json:"roomId"`
	Message *string `json:"message"`
}

// DecodeInbound parses one client frame. Unknown event names, a missing or
// non-positive roomId and a missing message are rejected with ErrBadEvent.
// Extra fields inside data are ignored.
func DecodeInbound(b []byte) (Inbound, error) {
	var f frame
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	data := f.Data
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}

	switch f.Event {
	case EventJoinAllRooms:
		var v struct{}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadEvent, f.Event, err)
		}
		return JoinAllRooms{}, nil

	case EventJoinRoom, EventLeaveRoom, EventRoomDeleted:
		var p roomPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadEvent, f.Event, err)
		}
		id, err := roomIDOf(f.Event, p.RoomID)
		if err != nil {
			return nil, err
		}
		switch f.Event {
		case EventJoinRoom:
			return JoinRoom{RoomID: id}, nil
		case EventLeaveRoom:
			return LeaveRoom{RoomID: id}, nil
		default:
			return RoomDeleted{RoomID: id}, nil
		}

	case EventSendMessage:
		var p sendPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadEvent, f.Event, err)
		}
		id, err := roomIDOf(f.Event, p.RoomID)
		if err != nil {
			return nil, err
		}
		if p.Message == nil {
			return nil, fmt.Errorf("%w: %s: message is required", ErrBadEvent, f.Event)
		}
		return SendMessage{RoomID: id, Message: *p.Message}, nil

	case "":
		return nil, fmt.Errorf("%w: missing event name", ErrBadEvent)
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrBadEvent, f.Event)
	}
}

func roomIDOf(ev EventName, id *int64) (domain.RoomID, error) {
	if id == nil {
		return 0, fmt.Errorf("%w: %s: roomId is required", ErrBadEvent, ev)
	}
	if *id <= 0 {
		return 0, fmt.Errorf("%w: %s: roomId must be positive", ErrBadEvent, ev)
	}
	return domain.RoomID(*id), nil
}

// EncodeOutbound renders {"event": name, "data": ev}.
func EncodeOutbound(ev Outbound) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame{Event: ev.Name(), Data: data})
}
