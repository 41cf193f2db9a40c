package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/errs"
	"github.com/cwrk-planet/chat-gateway/internal/repository"
)

type JoinStatus string

const (
	JoinOwnRoom       JoinStatus = "own_room"
	JoinJoined        JoinStatus = "joined"
	JoinAlreadyJoined JoinStatus = "already_joined"
)

// Room list filters.
const (
	WhereAll     = "all"
	WhereCreated = "created"
	WhereJoined  = "joined"
)

type RoomService struct {
	rooms repository.RoomRepository
	now   func() time.Time
}

func NewRoomService(rooms repository.RoomRepository, now func() time.Time) *RoomService {
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, now: now}
}

func (s *RoomService) Create(ctx context.Context, name string, creator domain.UserID) (*domain.Room, error) {
	room, err := domain.NewRoom(name, creator, s.now())
	if err != nil {
		return nil, err
	}

	id, err := s.rooms.Create(ctx, room)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, errs.ErrRoomNameTaken
		}
		slog.Error("room.create failed", slog.Any("err", err))
		return nil, fmt.Errorf("rooms.Create: %w", err)
	}
	room.ID = id

	return room, nil
}

func (s *RoomService) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	room, err := s.rooms.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errs.ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

// Join records userID as a guest. The creator is never added to the guest list.
func (s *RoomService) Join(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (JoinStatus, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return "", err
	}
	if room.IsCreator(userID) {
		return JoinOwnRoom, nil
	}

	added, err := s.rooms.AddGuest(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", errs.ErrRoomNotFound
		}
		slog.Error("room.join.addGuest failed",
			slog.Int64("room_id", int64(roomID)),
			slog.Any("err", err))
		return "", err
	}
	if !added {
		return JoinAlreadyJoined, nil
	}

	return JoinJoined, nil
}

// List returns the rooms of userID filtered by where (all, created or joined).
func (s *RoomService) List(ctx context.Context, userID domain.UserID, where string) ([]domain.Room, error) {
	switch where {
	case "", WhereAll:
		return s.rooms.ListMembershipsFor(ctx, userID)
	case WhereCreated:
		return s.rooms.ListCreatedBy(ctx, userID)
	case WhereJoined:
		all, err := s.rooms.ListMembershipsFor(ctx, userID)
		if err != nil {
			return nil, err
		}
		out := make([]domain.Room, 0, len(all))
		for _, r := range all {
			if !r.IsCreator(userID) {
				out = append(out, r)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: where must be all, created or joined", errs.ErrInvalidInput)
	}
}

// Delete removes a room; only its creator may.
func (s *RoomService) Delete(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsCreator(userID) {
		return errs.ErrForbidden
	}

	if err := s.rooms.Delete(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errs.ErrRoomNotFound
		}
		slog.Error("room.delete failed", slog.Int64("room_id", int64(roomID)), slog.Any("err", err))
		return err
	}
	return nil
}
