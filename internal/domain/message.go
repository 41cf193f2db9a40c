package domain

import "time"

type MessageID int64

// Message is immutable once stored; history order is (RoomID, CreatedAt, ID).
type Message struct {
	ID         MessageID
	RoomID     RoomID
	SenderID   UserID
	SenderName string
	Content    string
	CreatedAt  time.Time
}
