package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/errs"
)

type mockAuth struct {
	validateFn func(ctx context.Context, token string) (domain.Identity, error)
}

func (m *mockAuth) Validate(ctx context.Context, token string) (domain.Identity, error) {
	return m.validateFn(ctx, token)
}

func TestRequireSession(t *testing.T) {
	auth := &mockAuth{validateFn: func(_ context.Context, token string) (domain.Identity, error) {
		if token == "good" {
			return domain.Identity{UserID: 3, Name: "c"}, nil
		}
		return domain.Identity{}, errs.ErrAuthRejected
	}}

	var got domain.Identity
	var gotToken string
	h := RequireSession(auth, "sessionId")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		gotToken = TokenFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		cookie string
		want   int
	}{
		{"valid", "good", http.StatusNoContent},
		{"invalid", "bad", http.StatusUnauthorized},
		{"missing", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = domain.Identity{}
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "sessionId", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusNoContent && (got.UserID != 3 || gotToken != "good") {
				t.Fatalf("identity = %+v, token = %q", got, gotToken)
			}
		})
	}
}

func TestRequireSession_StoreErrorIsUnauthorized(t *testing.T) {
	auth := &mockAuth{validateFn: func(context.Context, string) (domain.Identity, error) {
		return domain.Identity{}, errors.New("db down")
	}}
	called := false
	h := RequireSession(auth, "sessionId")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized || called {
		t.Fatalf("status = %d, handler called = %v", w.Code, called)
	}
}

func TestRequestLogger_RecordsStatus(t *testing.T) {
	h := WithRequestLogger(RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tea", nil))
	if w.Code != http.StatusTeapot || w.Body.String() != "short and stout" {
		t.Fatalf("response = %d %q", w.Code, w.Body.String())
	}
}
