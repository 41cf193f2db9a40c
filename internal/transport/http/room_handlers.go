package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
	"github.com/cwrk-planet/chat-gateway/internal/errs"
	"github.com/cwrk-planet/chat-gateway/internal/service"
	"github.com/cwrk-planet/chat-gateway/internal/transport/http/middleware"
	"github.com/cwrk-planet/chat-gateway/pkg/httputil"
)

type RoomService interface {
	Create(ctx context.Context, name string, creator domain.UserID) (*domain.Room, error)
	Join(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (service.JoinStatus, error)
	List(ctx context.Context, userID domain.UserID, where string) ([]domain.Room, error)
	Delete(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
}

type ChatService interface {
	ListAll(ctx context.Context, roomID domain.RoomID, userID domain.UserID) ([]domain.Message, error)
	History(ctx context.Context, roomID domain.RoomID, userID domain.UserID, after string, limit int) ([]domain.Message, string, error)
}

type RoomHandlers struct {
	Rooms RoomService
	Chat  ChatService
}

func (h *RoomHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var in createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	id, _ := middleware.IdentityFromContext(r.Context())
	room, err := h.Rooms.Create(r.Context(), in.Name, id.UserID)
	if err != nil {
		writeError(w, r, "rooms.create", err)
		return
	}
	httputil.Created(w, toRoomResponse(room))
}

func (h *RoomHandlers) List(w http.ResponseWriter, r *http.Request) {
	where := r.URL.Query().Get("where")
	if where == "" {
		where = service.WhereAll
	}

	id, _ := middleware.IdentityFromContext(r.Context())
	rooms, err := h.Rooms.List(r.Context(), id.UserID, where)
	if err != nil {
		writeError(w, r, "rooms.list", err)
		return
	}
	httputil.OK(w, toRoomResponses(rooms))
}

func (h *RoomHandlers) Join(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomParam(w, r)
	if !ok {
		return
	}

	id, _ := middleware.IdentityFromContext(r.Context())
	status, err := h.Rooms.Join(r.Context(), roomID, id.UserID)
	if err != nil {
		writeError(w, r, "rooms.join", err)
		return
	}
	httputil.OK(w, joinRoomResponse{RoomID: int64(roomID), Status: string(status)})
}

func (h *RoomHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomParam(w, r)
	if !ok {
		return
	}

	id, _ := middleware.IdentityFromContext(r.Context())
	if err := h.Rooms.Delete(r.Context(), roomID, id.UserID); err != nil {
		writeError(w, r, "rooms.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Messages returns the full history unless limit or after asks for a page.
func (h *RoomHandlers) Messages(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomParam(w, r)
	if !ok {
		return
	}
	id, _ := middleware.IdentityFromContext(r.Context())

	q := r.URL.Query()
	after, rawLimit := q.Get("after"), q.Get("limit")
	if after == "" && rawLimit == "" {
		msgs, err := h.Chat.ListAll(r.Context(), roomID, id.UserID)
		if err != nil {
			writeError(w, r, "messages.list", err)
			return
		}
		httputil.OK(w, messagePage{Items: toMessageResponses(msgs)})
		return
	}

	limit := 0
	if rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n < 0 {
			writeError(w, r, "messages.history", errs.ErrInvalidInput)
			return
		}
		limit = n
	}

	msgs, next, err := h.Chat.History(r.Context(), roomID, id.UserID, after, limit)
	if err != nil {
		writeError(w, r, "messages.history", err)
		return
	}
	httputil.OK(w, messagePage{Items: toMessageResponses(msgs), NextCursor: next})
}

func roomParam(w http.ResponseWriter, r *http.Request) (domain.RoomID, bool) {
	n, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || n <= 0 {
		httputil.Error(w, http.StatusBadRequest, "invalid room id")
		return 0, false
	}
	return domain.RoomID(n), true
}
