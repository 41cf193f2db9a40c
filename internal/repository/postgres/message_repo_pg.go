package postgres

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/repository"
	"github.com/cwrk-planet/chat-gateway/internal/repository/queries"

	"github.com/jackc/pgx/v5"
)

type MessageRepo struct {
	q querier
}

var _ repository.MessageRepository = (*MessageRepo)(nil)

func NewMessageRepo(q querier) *MessageRepo {
	return &MessageRepo{q: q}
}

func (r *MessageRepo) Append(ctx context.Context, roomID domain.RoomID, senderID domain.UserID, senderName, content string) (*domain.Message, error) {
	m, err := scanMessage(r.q.QueryRow(ctx, queries.QueryAppendMessage, roomID, senderID, senderName, content))
	if err != nil {
		return nil, mapPgError(err)
	}
	return m, nil
}

func (r *MessageRepo) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	rows, err := r.q.Query(ctx, queries.QueryListMessagesByRoom, roomID)
	if err != nil {
		return nil, mapPgError(err)
	}
	return collectMessages(rows)
}

func (r *MessageRepo) History(ctx context.Context, roomID domain.RoomID, after string, limit int) ([]domain.Message, string, error) {
	limit = clampLimit(limit)
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", err
	}

	var createdAt, id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.q.Query(ctx, queries.QueryMessageHistory, roomID, createdAt, id, limit)
	if err != nil {
		return nil, "", mapPgError(err)
	}
	out, err := collectMessages(rows)
	if err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		next, err = EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: int64(last.ID)})
		if err != nil {
			return nil, "", fmt.Errorf("history cursor: %w", err)
		}
	}
	return out, next, nil
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var (
		m        domain.Message
		id       int64
		roomID   int64
		senderID int64
	)
	if err := row.Scan(&id, &roomID, &senderID, &m.SenderName, &m.Content, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.ID = domain.MessageID(id)
	m.RoomID = domain.RoomID(roomID)
	m.SenderID = domain.UserID(senderID)
	return &m, nil
}
