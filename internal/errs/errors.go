package errs

import (
	"errors"
	"net/http"
)

// Real-time core.
var (
	ErrAuthRejected        = errors.New("auth rejected")
	ErrDuplicateConnection = errors.New("duplicate connection")
	ErrPersistence         = errors.New("persistence error")
	ErrBusUnavailable      = errors.New("bus unavailable")
	ErrNotAMember          = errors.New("not a member")
)

// Domain validation and collaborators.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyPasswordHash  = errors.New("empty password hash")
	ErrEmptyTokenHash     = errors.New("empty token hash")
	ErrPastExpiry         = errors.New("expires_at is in the past")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomNameTaken      = errors.New("room name already exists")
	ErrForbidden          = errors.New("forbidden")
	ErrEmptyMessage       = errors.New("empty message")
	ErrMessageTooLong     = errors.New("message too long")
)

func ToHTTP(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrEmptyName),
		errors.Is(err, ErrPasswordTooShort),
		errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrMessageTooLong):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthRejected), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotAMember):
		return http.StatusForbidden
	case errors.Is(err, ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrRoomNameTaken):
		return http.StatusConflict
	case errors.Is(err, ErrPersistence), errors.Is(err, ErrBusUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
