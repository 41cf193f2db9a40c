package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/repository"
	"github.com/cwrk-planet/chat-gateway/internal/repository/queries"

	"github.com/jackc/pgx/v5"
)

type UserRepo struct {
	q querier
}

var _ repository.UserRepository = (*UserRepo)(nil)

func NewUserRepo(q querier) *UserRepo {
	return &UserRepo{q: q}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) (domain.UserID, error) {
	var id int64
	err := r.q.QueryRow(
		ctx,
		queries.QueryCreateUser,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, mapPgError(err)
	}

	return domain.UserID(id), nil
}

func (r *UserRepo) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return r.getOne(ctx, queries.QueryGetUserByID, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, queries.QueryGetUserByEmail, domain.NormalizeEmail(email))
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var one int
	err := r.q.QueryRow(ctx, queries.QueryExistsUserByEmail, domain.NormalizeEmail(email)).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, mapPgError(err)
	}

	return true, nil
}

func (r *UserRepo) getOne(ctx context.Context, sql string, arg any) (*domain.User, error) {
	var (
		id           int64
		name         string
		email        string
		passwordHash string
		joined       []int64
		createdAt    time.Time
	)

	err := r.q.QueryRow(ctx, sql, arg).Scan(
		&id,
		&name,
		&email,
		&passwordHash,
		&joined,
		&createdAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}

	return &domain.User{
		ID:            domain.UserID(id),
		Name:          strings.TrimSpace(name),
		Email:         email,
		PasswordHash:  passwordHash,
		JoinedRoomIDs: toRoomIDs(joined),
		CreatedAt:     createdAt,
	}, nil
}

func toRoomIDs(in []int64) []domain.RoomID {
	out := make([]domain.RoomID, len(in))
	for i, v := range in {
		out[i] = domain.RoomID(v)
	}
	return out
}
