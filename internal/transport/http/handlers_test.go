package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/errs"
	"github.com/cwrk-planet/chat-gateway/internal/service"
)

type mockAuthService struct {
	signupFn func(ctx context.Context, name, email, password string, meta service.LoginMeta) (*service.AuthResult, error)
	loginFn  func(ctx context.Context, email, password string, meta service.LoginMeta) (*service.AuthResult, error)
	logoutFn func(ctx context.Context, token string) error
	meFn     func(ctx context.Context, userID domain.UserID) (*domain.User, error)
}

func (m *mockAuthService) Signup(ctx context.Context, name, email, password string, meta service.LoginMeta) (*service.AuthResult, error) {
	return m.signupFn(ctx, name, email, password, meta)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string, meta service.LoginMeta) (*service.AuthResult, error) {
	return m.loginFn(ctx, email, password, meta)
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	return m.logoutFn(ctx, token)
}

func (m *mockAuthService) Me(ctx context.Context, userID domain.UserID) (*domain.User, error) {
	return m.meFn(ctx, userID)
}

type mockRoomService struct {
	createFn func(ctx context.Context, name string, creator domain.UserID) (*domain.Room, error)
	joinFn   func(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (service.JoinStatus, error)
	listFn   func(ctx context.Context, userID domain.UserID, where string) ([]domain.Room, error)
	deleteFn func(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
}

func (m *mockRoomService) Create(ctx context.Context, name string, creator domain.UserID) (*domain.Room, error) {
	return m.createFn(ctx, name, creator)
}

func (m *mockRoomService) Join(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (service.JoinStatus, error) {
	return m.joinFn(ctx, roomID, userID)
}

func (m *mockRoomService) List(ctx context.Context, userID domain.UserID, where string) ([]domain.Room, error) {
	return m.listFn(ctx, userID, where)
}

func (m *mockRoomService) Delete(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	return m.deleteFn(ctx, roomID, userID)
}

type mockChatService struct {
	listAllFn func(ctx context.Context, roomID domain.RoomID, userID domain.UserID) ([]domain.Message, error)
	historyFn func(ctx context.Context, roomID domain.RoomID, userID domain.UserID, after string, limit int) ([]domain.Message, string, error)
}

func (m *mockChatService) ListAll(ctx context.Context, roomID domain.RoomID, userID domain.UserID) ([]domain.Message, error) {
	return m.listAllFn(ctx, roomID, userID)
}

func (m *mockChatService) History(ctx context.Context, roomID domain.RoomID, userID domain.UserID, after string, limit int) ([]domain.Message, string, error) {
	return m.historyFn(ctx, roomID, userID, after, limit)
}

type tokenSessions struct{}

func (tokenSessions) Validate(_ context.Context, token string) (domain.Identity, error) {
	if token == "good" {
		return domain.Identity{UserID: 7, Name: "alice", Email: "alice@example.com"}, nil
	}
	return domain.Identity{}, errs.ErrAuthRejected
}

const cookieName = "sessionId"

func newTestRouter(auth *mockAuthService, rooms *mockRoomService, chat *mockChatService) http.Handler {
	if auth == nil {
		auth = &mockAuthService{}
	}
	if rooms == nil {
		rooms = &mockRoomService{}
	}
	if chat == nil {
		chat = &mockChatService{}
	}
	return NewRouter(Deps{
		Auth:     auth,
		Rooms:    rooms,
		Chat:     chat,
		Sessions: tokenSessions{},
		Cookie:   CookieConfig{Name: cookieName, TTL: 24 * time.Hour},
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: "good"})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestRouter(nil, nil, nil), http.MethodGet, "/healthz", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSignup_SetsSessionCookie(t *testing.T) {
	expires := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	auth := &mockAuthService{
		signupFn: func(_ context.Context, name, email, password string, meta service.LoginMeta) (*service.AuthResult, error) {
			if name != "alice" || email != "alice@example.com" || password != "secret123" {
				t.Fatalf("unexpected input %q %q %q", name, email, password)
			}
			if meta.UserAgent != "test-agent" {
				t.Fatalf("user agent = %q", meta.UserAgent)
			}
			return &service.AuthResult{
				User:      &domain.User{ID: 7, Name: "alice", Email: "alice@example.com"},
				Token:     "raw-token",
				ExpiresAt: expires,
			}, nil
		},
	}
	h := newTestRouter(auth, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/signup",
		strings.NewReader(`{"name":"alice","email":"alice@example.com","password":"secret123"}`))
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != cookieName || c.Value != "raw-token" {
		t.Fatalf("cookie = %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly || c.SameSite != http.SameSiteStrictMode {
		t.Fatalf("cookie flags: httpOnly=%v sameSite=%v", c.HttpOnly, c.SameSite)
	}
	if c.MaxAge != int((24 * time.Hour).Seconds()) {
		t.Fatalf("max age = %d", c.MaxAge)
	}

	var got authResponse
	decodeData(t, rec, &got)
	if got.User.ID != 7 || got.User.Name != "alice" || !got.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected body %+v", got)
	}
	if strings.Contains(rec.Body.String(), "raw-token") {
		t.Fatal("token leaked into body")
	}
}

func TestSignup_BadInput(t *testing.T) {
	h := newTestRouter(nil, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing name", `{"email":"a@b.c","password":"x"}`},
		{"missing password", `{"name":"a","email":"a@b.c"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/signup", tt.body, false)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
		})
	}
}

func TestSignup_EmailTaken(t *testing.T) {
	auth := &mockAuthService{
		signupFn: func(context.Context, string, string, string, service.LoginMeta) (*service.AuthResult, error) {
			return nil, errs.ErrEmailTaken
		},
	}
	rec := do(t, newTestRouter(auth, nil, nil), http.MethodPost, "/api/signup",
		`{"name":"a","email":"a@b.c","password":"secret123"}`, false)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	auth := &mockAuthService{
		loginFn: func(context.Context, string, string, service.LoginMeta) (*service.AuthResult, error) {
			return nil, errs.ErrInvalidCredentials
		},
	}
	rec := do(t, newTestRouter(auth, nil, nil), http.MethodPost, "/api/login",
		`{"email":"a@b.c","password":"wrong"}`, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("cookie set on failed login")
	}
}

func TestMe(t *testing.T) {
	auth := &mockAuthService{
		meFn: func(_ context.Context, id domain.UserID) (*domain.User, error) {
			return &domain.User{ID: id, Name: "alice", JoinedRoomIDs: []domain.RoomID{1, 2}}, nil
		},
	}
	h := newTestRouter(auth, nil, nil)

	if rec := do(t, h, http.MethodGet, "/api/me", "", false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/api/me", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got userResponse
	decodeData(t, rec, &got)
	if got.ID != 7 || len(got.JoinedRooms) != 2 {
		t.Fatalf("unexpected user %+v", got)
	}
}

func TestLogout_RevokesAndClearsCookie(t *testing.T) {
	var revoked string
	auth := &mockAuthService{
		logoutFn: func(_ context.Context, token string) error {
			revoked = token
			return nil
		},
	}
	rec := do(t, newTestRouter(auth, nil, nil), http.MethodPost, "/api/logout", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if revoked != "good" {
		t.Fatalf("revoked token = %q", revoked)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("cookie not cleared: %+v", cookies)
	}
}

func TestRooms_Create(t *testing.T) {
	rooms := &mockRoomService{
		createFn: func(_ context.Context, name string, creator domain.UserID) (*domain.Room, error) {
			if name == "taken" {
				return nil, errs.ErrRoomNameTaken
			}
			return &domain.Room{ID: 3, Name: name, CreatedBy: creator}, nil
		},
	}
	h := newTestRouter(nil, rooms, nil)

	rec := do(t, h, http.MethodPost, "/api/rooms", `{"name":"general"}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got roomResponse
	decodeData(t, rec, &got)
	if got.ID != 3 || got.CreatedBy != 7 || got.GuestIDs == nil {
		t.Fatalf("unexpected room %+v", got)
	}

	if rec := do(t, h, http.MethodPost, "/api/rooms", `{"name":"taken"}`, true); rec.Code != http.StatusConflict {
		t.Fatalf("taken status = %d", rec.Code)
	}
}

func TestRooms_ListPassesFilter(t *testing.T) {
	var gotWhere string
	rooms := &mockRoomService{
		listFn: func(_ context.Context, _ domain.UserID, where string) ([]domain.Room, error) {
			gotWhere = where
			if where == "bogus" {
				return nil, errs.ErrInvalidInput
			}
			return []domain.Room{{ID: 1, Name: "a"}}, nil
		},
	}
	h := newTestRouter(nil, rooms, nil)

	if rec := do(t, h, http.MethodGet, "/api/rooms", "", true); rec.Code != http.StatusOK || gotWhere != service.WhereAll {
		t.Fatalf("status = %d, where = %q", rec.Code, gotWhere)
	}
	if rec := do(t, h, http.MethodGet, "/api/rooms?where=joined", "", true); rec.Code != http.StatusOK || gotWhere != "joined" {
		t.Fatalf("status = %d, where = %q", rec.Code, gotWhere)
	}
	if rec := do(t, h, http.MethodGet, "/api/rooms?where=bogus", "", true); rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus status = %d", rec.Code)
	}
}

func TestRooms_JoinAndDelete(t *testing.T) {
	rooms := &mockRoomService{
		joinFn: func(_ context.Context, roomID domain.RoomID, _ domain.UserID) (service.JoinStatus, error) {
			if roomID == 404 {
				return "", errs.ErrRoomNotFound
			}
			return service.JoinJoined, nil
		},
		deleteFn: func(_ context.Context, roomID domain.RoomID, _ domain.UserID) error {
			if roomID == 2 {
				return errs.ErrForbidden
			}
			return nil
		},
	}
	h := newTestRouter(nil, rooms, nil)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"join", http.MethodPost, "/api/rooms/1/join", http.StatusOK},
		{"join missing room", http.MethodPost, "/api/rooms/404/join", http.StatusNotFound},
		{"join bad id", http.MethodPost, "/api/rooms/abc/join", http.StatusBadRequest},
		{"delete own", http.MethodDelete, "/api/rooms/1", http.StatusNoContent},
		{"delete foreign", http.MethodDelete, "/api/rooms/2", http.StatusForbidden},
		{"delete zero id", http.MethodDelete, "/api/rooms/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, "", true)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestMessages_FullAndPaged(t *testing.T) {
	var historyAfter string
	var historyLimit int
	chat := &mockChatService{
		listAllFn: func(_ context.Context, roomID domain.RoomID, _ domain.UserID) ([]domain.Message, error) {
			return []domain.Message{{ID: 1, RoomID: roomID, Content: "hi"}, {ID: 2, RoomID: roomID, Content: "hello"}}, nil
		},
		historyFn: func(_ context.Context, roomID domain.RoomID, _ domain.UserID, after string, limit int) ([]domain.Message, string, error) {
			historyAfter, historyLimit = after, limit
			return []domain.Message{{ID: 2, RoomID: roomID, Content: "hello"}}, "cursor-2", nil
		},
	}
	h := newTestRouter(nil, nil, chat)

	rec := do(t, h, http.MethodGet, "/api/rooms/1/messages", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var all messagePage
	decodeData(t, rec, &all)
	if len(all.Items) != 2 || all.NextCursor != "" {
		t.Fatalf("unexpected page %+v", all)
	}

	rec = do(t, h, http.MethodGet, "/api/rooms/1/messages?limit=1&after=c1", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("paged status = %d", rec.Code)
	}
	var page messagePage
	decodeData(t, rec, &page)
	if len(page.Items) != 1 || page.NextCursor != "cursor-2" {
		t.Fatalf("unexpected page %+v", page)
	}
	if historyAfter != "c1" || historyLimit != 1 {
		t.Fatalf("history called with after=%q limit=%d", historyAfter, historyLimit)
	}

	if rec := do(t, h, http.MethodGet, "/api/rooms/1/messages?limit=-3", "", true); rec.Code != http.StatusBadRequest {
		t.Fatalf("negative limit status = %d", rec.Code)
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	chat := &mockChatService{
		listAllFn: func(context.Context, domain.RoomID, domain.UserID) ([]domain.Message, error) {
			return nil, errors.New("pq: connection refused on 10.0.0.3")
		},
	}
	rec := do(t, newTestRouter(nil, nil, chat), http.MethodGet, "/api/rooms/1/messages", "", true)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.3") {
		t.Fatalf("cause leaked: %s", rec.Body.String())
	}
}
