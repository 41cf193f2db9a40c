package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
)

// SessionTokenBytes is the entropy of a session token.
const SessionTokenBytes = 32

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := io.ReadFull(rand.Reader, b)
	return b, err
}

// RandomStringURLSafe returns n random bytes as unpadded base64url.
func RandomStringURLSafe(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewSessionToken returns the raw token for the client and the hash to persist.
func NewSessionToken() (token, hash string, err error) {
	token, err = RandomStringURLSafe(SessionTokenBytes)
	if err != nil {
		return "", "", err
	}
	return token, HashToken(token), nil
}

// HashToken is the lookup key of a session token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
