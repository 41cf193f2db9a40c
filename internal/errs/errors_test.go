package errs

import (
	"fmt"
	"net/http"
	"testing"
)

func TestToHTTP(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrPasswordTooShort, http.StatusBadRequest},
		{fmt.Errorf("%w: session revoked", ErrAuthRejected), http.StatusUnauthorized},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("room 7: %w", ErrRoomNotFound), http.StatusNotFound},
		{ErrRoomNameTaken, http.StatusConflict},
		{fmt.Errorf("%w: timeout", ErrPersistence), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := ToHTTP(tt.err); got != tt.want {
			t.Errorf("ToHTTP(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
