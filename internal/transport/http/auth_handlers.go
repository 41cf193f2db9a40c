package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/errs"
	"github.com/cwrk-planet/chat-gateway/internal/service"
	"github.com/cwrk-planet/chat-gateway/internal/transport/http/middleware"
	"github.com/cwrk-planet/chat-gateway/pkg/httputil"
	"github.com/cwrk-planet/chat-gateway/pkg/logger"
)

type AuthService interface {
	Signup(ctx context.Context, name, email, password string, meta service.LoginMeta) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string, meta service.LoginMeta) (*service.AuthResult, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, userID domain.UserID) (*domain.User, error)
}

type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
	TTL    time.Duration
}

type AuthHandlers struct {
	Auth   AuthService
	Cookie CookieConfig
}

func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var in signupRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "name, email and password are required")
		return
	}

	res, err := h.Auth.Signup(r.Context(), in.Name, in.Email, in.Password, loginMeta(r))
	if err != nil {
		writeError(w, r, "signup", err)
		return
	}

	h.setCookie(w, res.Token, res.ExpiresAt)
	httputil.Created(w, authResponse{User: toUserResponse(res.User), ExpiresAt: res.ExpiresAt})
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	res, err := h.Auth.Login(r.Context(), in.Email, in.Password, loginMeta(r))
	if err != nil {
		writeError(w, r, "login", err)
		return
	}

	h.setCookie(w, res.Token, res.ExpiresAt)
	httputil.OK(w, authResponse{User: toUserResponse(res.User), ExpiresAt: res.ExpiresAt})
}

func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context(), middleware.TokenFromContext(r.Context())); err != nil {
		writeError(w, r, "logout", err)
		return
	}

	h.clearCookie(w)
	httputil.OK(w, map[string]string{"status": "logged_out"})
}

func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	u, err := h.Auth.Me(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, "me", err)
		return
	}
	httputil.OK(w, toUserResponse(u))
}

func (h *AuthHandlers) setCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    token,
		Path:     "/",
		Domain:   h.Cookie.Domain,
		Expires:  expires,
		MaxAge:   int(h.Cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandlers) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   h.Cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func loginMeta(r *http.Request) service.LoginMeta {
	meta := service.LoginMeta{UserAgent: r.UserAgent()}
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		meta.IP = ap.Addr()
	} else if a, err := netip.ParseAddr(r.RemoteAddr); err == nil {
		meta.IP = a
	}
	return meta
}

// writeError maps err to a status; 5xx bodies never carry the cause.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := errs.ToHTTP(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("http."+op+" failed", slog.Any("err", err))
		httputil.Error(w, status, http.StatusText(status))
		return
	}
	httputil.Error(w, status, err.Error())
}
