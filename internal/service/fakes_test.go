package service

import (
	"context"
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
)

type mockUserRepo struct {
	createFn        func(ctx context.Context, u *domain.User) (domain.UserID, error)
	getByIDFn       func(ctx context.Context, id domain.UserID) (*domain.User, error)
	getByEmailFn    func(ctx context.Context, email string) (*domain.User, error)
	existsByEmailFn func(ctx context.Context, email string) (bool, error)
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) (domain.UserID, error) {
	return m.createFn(ctx, u)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getByEmailFn(ctx, email)
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return m.existsByEmailFn(ctx, email)
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, s *domain.Session) (domain.SessionID, error)
	getByTokenHashFn func(ctx context.Context, hash string) (*domain.Session, error)
	revokeFn         func(ctx context.Context, id domain.SessionID) error
	deleteExpiredFn  func(ctx context.Context, now time.Time) (int64, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, s *domain.Session) (domain.SessionID, error) {
	return m.createFn(ctx, s)
}

func (m *mockSessionRepo) GetByTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	return m.getByTokenHashFn(ctx, hash)
}

func (m *mockSessionRepo) Revoke(ctx context.Context, id domain.SessionID) error {
	return m.revokeFn(ctx, id)
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return m.deleteExpiredFn(ctx, now)
}

type mockRoomRepo struct {
	createFn             func(ctx context.Context, r *domain.Room) (domain.RoomID, error)
	getByIDFn            func(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	listCreatedByFn      func(ctx context.Context, userID domain.UserID) ([]domain.Room, error)
	listByIDsFn          func(ctx context.Context, ids []domain.RoomID) ([]domain.Room, error)
	listMembershipsForFn func(ctx context.Context, userID domain.UserID) ([]domain.Room, error)
	addGuestFn           func(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error)
	deleteFn             func(ctx context.Context, id domain.RoomID) error
}

func (m *mockRoomRepo) Create(ctx context.Context, r *domain.Room) (domain.RoomID, error) {
	return m.createFn(ctx, r)
}

func (m *mockRoomRepo) GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockRoomRepo) ListCreatedBy(ctx context.Context, userID domain.UserID) ([]domain.Room, error) {
	return m.listCreatedByFn(ctx, userID)
}

func (m *mockRoomRepo) ListByIDs(ctx context.Context, ids []domain.RoomID) ([]domain.Room, error) {
	return m.listByIDsFn(ctx, ids)
}

func (m *mockRoomRepo) ListMembershipsFor(ctx context.Context, userID domain.UserID) ([]domain.Room, error) {
	return m.listMembershipsForFn(ctx, userID)
}

func (m *mockRoomRepo) AddGuest(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	return m.addGuestFn(ctx, roomID, userID)
}

func (m *mockRoomRepo) Delete(ctx context.Context, id domain.RoomID) error {
	return m.deleteFn(ctx, id)
}

type mockMessageRepo struct {
	appendFn     func(ctx context.Context, roomID domain.RoomID, senderID domain.UserID, senderName, content string) (*domain.Message, error)
	listByRoomFn func(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error)
	historyFn    func(ctx context.Context, roomID domain.RoomID, after string, limit int) ([]domain.Message, string, error)
}

func (m *mockMessageRepo) Append(ctx context.Context, roomID domain.RoomID, senderID domain.UserID, senderName, content string) (*domain.Message, error) {
	return m.appendFn(ctx, roomID, senderID, senderName, content)
}

func (m *mockMessageRepo) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	return m.listByRoomFn(ctx, roomID)
}

func (m *mockMessageRepo) History(ctx context.Context, roomID domain.RoomID, after string, limit int) ([]domain.Message, string, error) {
	return m.historyFn(ctx, roomID, after, limit)
}
