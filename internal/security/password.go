package security

import (
	"errors"

	"github.com/cwrk-planet/chat-gateway/internal/errs"

	"golang.org/x/crypto/bcrypt"
)

type PasswordPolicy struct {
	Cost      int // bcrypt.DefaultCost when zero
	MinLength int // 6 when zero
}

func HashPassword(plain string, p PasswordPolicy) (string, error) {
	minLen := 6
	if p.MinLength > 0 {
		minLen = p.MinLength
	}
	cost := bcrypt.DefaultCost
	if p.Cost > 0 {
		cost = p.Cost
	}

	if len(plain) < minLen {
		return "", errs.ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// ComparePassword returns errs.ErrInvalidCredentials on mismatch.
func ComparePassword(hash, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return errs.ErrInvalidCredentials
	}
	return err
}
