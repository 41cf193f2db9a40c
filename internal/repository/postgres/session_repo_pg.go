package postgres

import (
	"context"
	"net/netip"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/repository"
	"github.com/cwrk-planet/chat-gateway/internal/repository/queries"
)

type SessionRepo struct {
	q querier
}

var _ repository.SessionRepository = (*SessionRepo)(nil)

func NewSessionRepo(q querier) *SessionRepo {
	return &SessionRepo{q: q}
}

func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) (domain.SessionID, error) {
	var ip any
	if s.IP != nil {
		ip = *s.IP
	}

	var id int64
	err := r.q.QueryRow(
		ctx,
		queries.QueryCreateSession,
		s.UserID,
		strings.TrimSpace(s.TokenHash),
		s.StartedAt,
		s.ExpiresAt,
		toNullStringPtr(s.UserAgent),
		ip,
	).Scan(&id)
	if err != nil {
		return 0, mapPgError(err)
	}

	return domain.SessionID(id), nil
}

func (r *SessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	row := r.q.QueryRow(ctx, queries.QueryGetSessionByTokenHash, strings.TrimSpace(tokenHash))
	s, err := scanSession(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return s, nil
}

// scanSession reads the column order of QueryGetSessionByTokenHash.
// An unparsable stored ip is dropped rather than failing the lookup.
func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		s      domain.Session
		id     int64
		userID int64
		ipText *string
	)
	if err := row.Scan(&id, &userID, &s.TokenHash, &s.StartedAt, &s.ExpiresAt, &s.UserAgent, &ipText, &s.IsRevoked); err != nil {
		return nil, err
	}
	s.ID = domain.SessionID(id)
	s.UserID = domain.UserID(userID)

	if ipText != nil {
		if addr, err := netip.ParseAddr(*ipText); err == nil {
			s.IP = &addr
		}
	}
	return &s, nil
}

func (r *SessionRepo) Revoke(ctx context.Context, id domain.SessionID) error {
	tag, err := r.q.Exec(ctx, queries.QueryRevokeSession, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, queries.QueryDeleteSessionsExpiredByTime, now)
	if err != nil {
		return 0, mapPgError(err)
	}
	return tag.RowsAffected(), nil
}
