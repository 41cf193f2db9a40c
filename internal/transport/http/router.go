package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cwrk-planet/chat-gateway/internal/transport/http/middleware"
	"github.com/cwrk-planet/chat-gateway/pkg/httputil"
)

type Deps struct {
	Auth     AuthService
	Rooms    RoomService
	Chat     ChatService
	Sessions middleware.Authenticator
	Cookie   CookieConfig

	// WS and Metrics are optional.
	WS      http.Handler
	Metrics http.Handler

	AllowedOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(httputil.MiddlewareRequestID)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	// upgrade needs the raw ResponseWriter, so /ws stays outside the logging group
	if d.WS != nil {
		r.Handle("/ws", d.WS)
	}

	ah := &AuthHandlers{Auth: d.Auth, Cookie: d.Cookie}
	rh := &RoomHandlers{Rooms: d.Rooms, Chat: d.Chat}
	requireSession := middleware.RequireSession(d.Sessions, d.Cookie.Name)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))
		r.Use(chimw.Timeout(60 * time.Second))
		r.Use(middleware.WithRequestLogger)
		r.Use(middleware.RequestLogger)

		r.Route("/api", func(r chi.Router) {
			r.Post("/signup", ah.Signup)
			r.Post("/login", ah.Login)

			r.Group(func(r chi.Router) {
				r.Use(requireSession)

				r.Post("/logout", ah.Logout)
				r.Get("/me", ah.Me)

				r.Route("/rooms", func(rt chi.Router) {
					rt.Post("/", rh.Create)
					rt.Get("/", rh.List)

					rt.Route("/{id}", func(rr chi.Router) {
						rr.Delete("/", rh.Delete)
						rr.Post("/join", rh.Join)
						rr.Get("/messages", rh.Messages)
					})
				})
			})
		})
	})

	return r
}
