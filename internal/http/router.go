package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/roomchat/chat-server/internal/handlers"
)

// Handlers はAPIルーターが必要とするハンドラーの組
type Handlers struct {
	Room    *handlers.RoomHandler
	Auth    *handlers.AuthHandler
	Health  *handlers.HealthHandler
	Session *handlers.SessionAuth
	Static  http.Handler // nilの場合は静的ファイルを配信しない
}

// NewRouter はAPIサーバーのルーターを作成します
func NewRouter(h Handlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", h.Health.Healthz)
	r.Post("/login", h.Auth.Login)

	// セッションが必要なエンドポイント
	r.Group(func(r chi.Router) {
		r.Use(h.Session.Middleware)

		r.Route("/chat", func(r chi.Router) {
			r.Get("/", h.Room.List)
			r.Post("/", h.Room.Create)
			r.Get("/{roomId}", h.Room.Get)
			r.Get("/{roomId}/messages", h.Room.Messages)
			r.Post("/{roomId}/messages", h.Room.AddMessages)
		})
		r.Get("/profile", h.Auth.Profile)
		r.Get("/logout", h.Auth.Logout)
	})

	if h.Static != nil {
		r.NotFound(h.Static.ServeHTTP)
	}

	return r
}

// NewRelayRouter はリレーサーバーのルーターを作成します
// どのパスでもWebSocketにアップグレードします
func NewRelayRouter(relay *handlers.RelayHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Handle("/*", relay)
	return r
}
