// Package session authenticates opaque session tokens and reaps expired sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/errs"
	"github.com/cwrk-planet/chat-gateway/internal/repository"
	"github.com/cwrk-planet/chat-gateway/internal/security"
)

type SessionStore interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	Revoke(ctx context.Context, id domain.SessionID) error
}

type UserStore interface {
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// Validator never caches: every call re-reads the session and the user.
type Validator struct {
	sessions SessionStore
	users    UserStore
	now      func() time.Time
	log      *slog.Logger
}

func NewValidator(sessions SessionStore, users UserStore, now func() time.Time, log *slog.Logger) *Validator {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}

	return &Validator{
		sessions: sessions,
		users:    users,
		now:      now,
		log:      log,
	}
}

// Validate resolves token to an identity. Every failure, including store errors,
// is reported as errs.ErrAuthRejected.
func (v *Validator) Validate(ctx context.Context, token string) (domain.Identity, error) {
	_, id, err := v.Authenticate(ctx, token)
	return id, err
}

// Authenticate is Validate that also returns the session record.
func (v *Validator) Authenticate(ctx context.Context, token string) (*domain.Session, domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.Identity{}, reject("missing token")
	}

	sess, err := v.sessions.GetByTokenHash(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.Identity{}, reject("unknown session")
		}
		v.log.Error("session.validate.getByTokenHash failed", slog.Any("err", err))
		return nil, domain.Identity{}, fmt.Errorf("%w: session lookup: %v", errs.ErrAuthRejected, err)
	}

	if sess.IsRevoked {
		return nil, domain.Identity{}, reject("session revoked")
	}

	if sess.IsExpired(v.now()) {
		if err := v.sessions.Revoke(ctx, sess.ID); err != nil {
			v.log.Warn("session.validate.revokeExpired failed",
				slog.Int64("session_id", int64(sess.ID)),
				slog.Any("err", err))
		}
		return nil, domain.Identity{}, reject("session expired")
	}

	u, err := v.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.Identity{}, reject("user not found")
		}
		v.log.Error("session.validate.getUserByID failed",
			slog.Int64("user_id", int64(sess.UserID)),
			slog.Any("err", err))
		return nil, domain.Identity{}, fmt.Errorf("%w: user lookup: %v", errs.ErrAuthRejected, err)
	}

	return sess, u.Identity(), nil
}

func reject(reason string) error {
	return fmt.Errorf("%w: %s", errs.ErrAuthRejected, reason)
}
