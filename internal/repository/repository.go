package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
)

// Implementations map driver errors onto these.
var (
	ErrNotFound      = errors.New("repository: not found")
	ErrAlreadyExists = errors.New("repository: already exists")
	ErrInvalidCursor = errors.New("repository: invalid cursor")
)

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) (domain.SessionID, error)
	// GetByTokenHash returns revoked and expired sessions too; the caller decides.
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	Revoke(ctx context.Context, id domain.SessionID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) (domain.UserID, error)
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type RoomRepository interface {
	Create(ctx context.Context, r *domain.Room) (domain.RoomID, error)
	GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	ListCreatedBy(ctx context.Context, userID domain.UserID) ([]domain.Room, error)
	ListByIDs(ctx context.Context, ids []domain.RoomID) ([]domain.Room, error)
	// ListMembershipsFor returns rooms created or joined by the user.
	ListMembershipsFor(ctx context.Context, userID domain.UserID) ([]domain.Room, error)
	// AddGuest records the join on both the room and the user; false if already a guest.
	AddGuest(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error)
	Delete(ctx context.Context, id domain.RoomID) error
}

type MessageRepository interface {
	Append(ctx context.Context, roomID domain.RoomID, senderID domain.UserID, senderName, content string) (*domain.Message, error)
	// ListByRoom is ascending by (created_at, id).
	ListByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error)
	// History pages newest first; next is empty on the last page.
	History(ctx context.Context, roomID domain.RoomID, after string, limit int) (items []domain.Message, next string, err error)
}
