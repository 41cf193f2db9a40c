package middleware

import (
	"context"
	"net/http"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/pkg/httputil"
)

type Authenticator interface {
	Validate(ctx context.Context, token string) (domain.Identity, error)
}

type ctxKey int

const (
	ctxKeyIdentity ctxKey = iota
	ctxKeyToken
)

// RequireSession rejects requests without a usable session with 401.
func RequireSession(auth Authenticator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := httputil.SessionToken(r, cookieName)
			if token == "" {
				httputil.Error(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			id, err := auth.Validate(r.Context(), token)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyIdentity, id)
			ctx = context.WithValue(ctx, ctxKeyToken, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(domain.Identity)
	return id, ok
}

func TokenFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(ctxKeyToken).(string)
	return tok
}
