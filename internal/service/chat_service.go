package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/errs"
	"github.com/cwrk-planet/chat-gateway/internal/repository"
)

type RoomReader interface {
	GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error)
}

// ChatService reads room history for members.
type ChatService struct {
	rooms    RoomReader
	messages repository.MessageRepository
}

func NewChatService(rooms RoomReader, messages repository.MessageRepository) *ChatService {
	return &ChatService{rooms: rooms, messages: messages}
}

// ListAll returns the whole log of a room, oldest first.
func (s *ChatService) ListAll(ctx context.Context, roomID domain.RoomID, userID domain.UserID) ([]domain.Message, error) {
	if err := s.authorize(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.messages.ListByRoom(ctx, roomID)
}

// History pages through a room newest first.
func (s *ChatService) History(ctx context.Context, roomID domain.RoomID, userID domain.UserID, after string, limit int) ([]domain.Message, string, error) {
	if err := s.authorize(ctx, roomID, userID); err != nil {
		return nil, "", err
	}

	items, next, err := s.messages.History(ctx, roomID, after, limit)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, "", fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
		}
		return nil, "", err
	}
	return items, next, nil
}

func (s *ChatService) authorize(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errs.ErrRoomNotFound
		}
		return err
	}
	if !room.IsMember(userID) {
		return errs.ErrForbidden
	}
	return nil
}
