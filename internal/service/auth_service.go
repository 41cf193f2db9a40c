package service

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/errs"
	"github.com/cwrk-planet/chat-gateway/internal/repository"
	"github.com/cwrk-planet/chat-gateway/internal/security"
)

// AuthResult carries the raw session token; only its hash is stored.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Session metadata
type LoginMeta struct {
	UserAgent string
	IP        netip.Addr
}

type AuthService struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	sessionTTL time.Duration
	passPolicy security.PasswordPolicy
	now        func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	sessionTTL time.Duration,
	passPolicy security.PasswordPolicy,
	now func() time.Time,
) *AuthService {
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}

	return &AuthService{
		users:      users,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		passPolicy: passPolicy,
		now:        now,
	}
}

func (s *AuthService) Signup(ctx context.Context, name, email, password string, meta LoginMeta) (*AuthResult, error) {
	email = domain.NormalizeEmail(email)
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		slog.Error("auth.signup.existsByEmail failed", slog.Any("err", err))
		return nil, err
	}
	if exists {
		return nil, errs.ErrEmailTaken
	}

	hash, err := security.HashPassword(password, s.passPolicy)
	if err != nil {
		return nil, err
	}

	u, err := domain.NewUser(name, email, hash, s.now())
	if err != nil {
		return nil, err
	}

	id, err := s.users.Create(ctx, u)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, errs.ErrEmailTaken
		}
		slog.Error("auth.signup.createUser failed", slog.Any("err", err))
		return nil, err
	}
	u.ID = id

	token, expires, err := s.issueSession(ctx, u.ID, meta)
	if err != nil {
		slog.Error("auth.signup.issueSession failed", slog.Any("err", err))
		return nil, err
	}

	return &AuthResult{User: u, Token: token, ExpiresAt: expires}, nil
}

// Login checks email and password and opens a new session.
func (s *AuthService) Login(ctx context.Context, email, password string, meta LoginMeta) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errs.ErrInvalidCredentials
		}
		slog.Error("auth.login.getByEmail failed", slog.Any("err", err))
		return nil, err
	}

	if err := security.ComparePassword(u.PasswordHash, password); err != nil {
		return nil, err
	}

	token, expires, err := s.issueSession(ctx, u.ID, meta)
	if err != nil {
		slog.Error("auth.login.issueSession failed", slog.Any("err", err))
		return nil, err
	}

	return &AuthResult{User: u, Token: token, ExpiresAt: expires}, nil
}

// Logout revokes the session behind token. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	sess, err := s.sessions.GetByTokenHash(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		slog.Error("auth.logout.getByTokenHash failed", slog.Any("err", err))
		return err
	}
	if sess.IsRevoked {
		return nil
	}

	if err := s.sessions.Revoke(ctx, sess.ID); err != nil {
		slog.Error("auth.logout.revoke failed", slog.Any("err", err))
		return err
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID domain.UserID) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errs.ErrAuthRejected
		}
		slog.Error("auth.me.getUserByID failed", slog.Any("err", err))
		return nil, err
	}
	return u, nil
}

func (s *AuthService) SessionTTL() time.Duration { return s.sessionTTL }

func (s *AuthService) issueSession(ctx context.Context, userID domain.UserID, meta LoginMeta) (string, time.Time, error) {
	now := s.now()

	token, hash, err := security.NewSessionToken()
	if err != nil {
		return "", time.Time{}, err
	}
	expires := now.Add(s.sessionTTL)

	sess, err := domain.NewSession(userID, hash, expires, now,
		domain.WithUserAgent(meta.UserAgent),
		domain.WithIP(meta.IP))
	if err != nil {
		return "", time.Time{}, err
	}

	if _, err := s.sessions.Create(ctx, sess); err != nil {
		return "", time.Time{}, err
	}

	return token, expires, nil
}
