package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/errs"
)

type RoomID int64

// Room creator is a member implicitly and never appears in GuestIDs.
type Room struct {
	ID        RoomID
	Name      string
	CreatedBy UserID
	GuestIDs  []UserID
	CreatedAt time.Time
}

func NewRoom(name string, createdBy UserID, now time.Time) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.ErrEmptyName
	}

	return &Room{
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: now,
	}, nil
}

func (r *Room) IsCreator(id UserID) bool { return r.CreatedBy == id }

func (r *Room) HasGuest(id UserID) bool { return slices.Contains(r.GuestIDs, id) }

func (r *Room) IsMember(id UserID) bool { return r.IsCreator(id) || r.HasGuest(id) }
