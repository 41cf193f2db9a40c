package httputil

import (
	"net/http"
	"strings"
)

// SessionToken reads the session token from the cookie, then from a Bearer
// Authorization header, then from the token query parameter.
func SessionToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if tok := strings.TrimSpace(auth[len("Bearer "):]); tok != "" {
			return tok
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
