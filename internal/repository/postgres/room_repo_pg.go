package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/repository"
	"github.com/cwrk-planet/chat-gateway/internal/repository/queries"

	"github.com/jackc/pgx/v5"
)

type RoomRepo struct {
	q txQuerier
}

var _ repository.RoomRepository = (*RoomRepo)(nil)

func NewRoomRepo(q txQuerier) *RoomRepo {
	return &RoomRepo{q: q}
}

func (r *RoomRepo) Create(ctx context.Context, room *domain.Room) (domain.RoomID, error) {
	var id int64
	if err := r.q.QueryRow(ctx, queries.QueryCreateRoom, room.Name, room.CreatedBy, room.CreatedAt).Scan(&id); err != nil {
		return 0, mapPgError(err)
	}
	return domain.RoomID(id), nil
}

func (r *RoomRepo) GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	room, err := scanRoom(r.q.QueryRow(ctx, queries.QueryGetRoomByID, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	return room, nil
}

func (r *RoomRepo) ListCreatedBy(ctx context.Context, userID domain.UserID) ([]domain.Room, error) {
	return r.list(ctx, queries.QueryListRoomsCreated, userID)
}

func (r *RoomRepo) ListByIDs(ctx context.Context, ids []domain.RoomID) ([]domain.Room, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}
	return r.list(ctx, queries.QueryListRoomsByIDs, raw)
}

func (r *RoomRepo) ListMembershipsFor(ctx context.Context, userID domain.UserID) ([]domain.Room, error) {
	return r.list(ctx, queries.QueryListRoomMemberships, userID)
}

// AddGuest appends the user to the room guests and the room to the user's joined rooms.
// The room row is locked so concurrent joins of one room serialize.
func (r *RoomRepo) AddGuest(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	tx, err := r.q.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var createdBy int64
	if err := tx.QueryRow(ctx, queries.QueryLockRoom, roomID).Scan(&createdBy); err != nil {
		return false, mapPgError(err)
	}
	if domain.UserID(createdBy) == userID {
		return false, nil
	}

	tag, err := tx.Exec(ctx, queries.QueryAppendGuest, roomID, userID)
	if err != nil {
		return false, fmt.Errorf("append guest: %w", mapPgError(err))
	}
	added := tag.RowsAffected() > 0

	if _, err := tx.Exec(ctx, queries.QueryAppendJoinedRoom, userID, roomID); err != nil {
		return false, fmt.Errorf("append joined room: %w", mapPgError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return added, nil
}

func (r *RoomRepo) Delete(ctx context.Context, id domain.RoomID) error {
	tag, err := r.q.Exec(ctx, queries.QueryDeleteRoom, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RoomRepo) list(ctx context.Context, sql string, arg any) ([]domain.Room, error) {
	rows, err := r.q.Query(ctx, sql, arg)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *room)
	}

	return out, rows.Err()
}

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var (
		id        int64
		name      string
		createdBy int64
		guests    []int64
		createdAt time.Time
	)
	if err := row.Scan(&id, &name, &createdBy, &guests, &createdAt); err != nil {
		return nil, err
	}

	guestIDs := make([]domain.UserID, len(guests))
	for i, g := range guests {
		guestIDs[i] = domain.UserID(g)
	}

	return &domain.Room{
		ID:        domain.RoomID(id),
		Name:      name,
		CreatedBy: domain.UserID(createdBy),
		GuestIDs:  guestIDs,
		CreatedAt: createdAt,
	}, nil
}
