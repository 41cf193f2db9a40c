package http

import (
	"time"

	"github.com/cwrk-planet/chat-gateway/internal/domain"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createRoomRequest struct {
	Name string `json:"name"`
}

type userResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	JoinedRooms []int64   `json:"joined_rooms"`
	CreatedAt   time.Time `json:"created_at"`
}

type authResponse struct {
	User      userResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type roomResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedBy int64     `json:"created_by"`
	GuestIDs  []int64   `json:"guest_ids"`
	CreatedAt time.Time `json:"created_at"`
}

type joinRoomResponse struct {
	RoomID int64  `json:"room_id"`
	Status string `json:"status"`
}

type messageResponse struct {
	ID         int64     `json:"id"`
	RoomID     int64     `json:"room_id"`
	SenderID   int64     `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type messagePage struct {
	Items      []messageResponse `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

func toUserResponse(u *domain.User) userResponse {
	joined := make([]int64, 0, len(u.JoinedRoomIDs))
	for _, id := range u.JoinedRoomIDs {
		joined = append(joined, int64(id))
	}
	return userResponse{
		ID:          int64(u.ID),
		Name:        u.Name,
		Email:       u.Email,
		JoinedRooms: joined,
		CreatedAt:   u.CreatedAt,
	}
}

func toRoomResponse(r *domain.Room) roomResponse {
	guests := make([]int64, 0, len(r.GuestIDs))
	for _, id := range r.GuestIDs {
		guests = append(guests, int64(id))
	}
	return roomResponse{
		ID:        int64(r.ID),
		Name:      r.Name,
		CreatedBy: int64(r.CreatedBy),
		GuestIDs:  guests,
		CreatedAt: r.CreatedAt,
	}
}

func toRoomResponses(rooms []domain.Room) []roomResponse {
	out := make([]roomResponse, 0, len(rooms))
	for i := range rooms {
		out = append(out, toRoomResponse(&rooms[i]))
	}
	return out
}

func toMessageResponses(msgs []domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{
			ID:         int64(m.ID),
			RoomID:     int64(m.RoomID),
			SenderID:   int64(m.SenderID),
			SenderName: m.SenderName,
			Content:    m.Content,
			CreatedAt:  m.CreatedAt,
		})
	}
	return out
}
