package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/errs"
)

type UserID int64

type User struct {
	ID            UserID
	Name          string
	Email         string
	PasswordHash  string
	JoinedRoomIDs []RoomID
	CreatedAt     time.Time
}

// NewUser expects an already computed password hash.
func NewUser(name, email, passwordHash string, now time.Time) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.ErrEmptyName
	}
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errs.ErrInvalidEmail
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, errs.ErrEmptyPasswordHash
	}

	return &User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

func (u *User) HasJoined(id RoomID) bool {
	return slices.Contains(u.JoinedRoomIDs, id)
}

func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Name: u.Name, Email: u.Email}
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Identity is what an authenticated connection knows about its user.
type Identity struct {
	UserID UserID
	Name   string
	Email  string
}
