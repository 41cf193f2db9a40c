package domain

import (
	"net/netip"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/errs"
)

type SessionID int64

// Session is a server-issued login. Only the SHA-256 of the token is stored.
type Session struct {
	ID        SessionID
	UserID    UserID
	TokenHash string
	StartedAt time.Time
	ExpiresAt time.Time
	UserAgent *string
	IP        *netip.Addr
	IsRevoked bool
}

func NewSession(userID UserID, tokenHash string, expiresAt, now time.Time, opts ...SessionOption) (*Session, error) {
	if strings.TrimSpace(tokenHash) == "" {
		return nil, errs.ErrEmptyTokenHash
	}
	if !expiresAt.After(now) {
		return nil, errs.ErrPastExpiry
	}

	s := &Session{
		UserID:    userID,
		TokenHash: tokenHash,
		StartedAt: now,
		ExpiresAt: expiresAt,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Usable reports whether the session may authenticate at now.
func (s *Session) Usable(now time.Time) bool {
	return !s.IsRevoked && !s.IsExpired(now)
}

type SessionOption func(*Session)

func WithUserAgent(ua string) SessionOption {
	return func(s *Session) {
		if ua = strings.TrimSpace(ua); ua != "" {
			s.UserAgent = &ua
		}
	}
}

func WithIP(addr netip.Addr) SessionOption {
	return func(s *Session) {
		if addr.IsValid() {
			s.IP = &addr
		}
	}
}
