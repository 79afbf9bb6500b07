package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/roomchat/chat-server/internal/models"
	"github.com/roomchat/chat-server/internal/repo"
	"github.com/roomchat/chat-server/internal/service"
	"github.com/stretchr/testify/require"
)

const testCookie = "cpen322-session"

type fixture struct {
	store    *repo.MemoryStore
	sessions *service.SessionService
	buffer   *service.MessageBuffer
	rooms    *service.RoomService
	auth     *SessionAuth
	hub      *RelayHub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repo.NewMemoryStore(0)
	sessions := service.NewSessionService(repo.NewMemorySessionRepo(), time.Minute)
	buffer := service.NewMessageBuffer(store, service.DefaultBatchSize)

	hash, err := service.HashPassword("secret")
	require.NoError(t, err)
	require.NoError(t, store.PutUser(context.Background(), models.User{Username: "alice", Password: hash}))
	require.NoError(t, store.PutUser(context.Background(), models.User{Username: "bob", Password: hash}))

	return &fixture{
		store:    store,
		sessions: sessions,
		buffer:   buffer,
		rooms:    service.NewRoomService(store, store, buffer),
		auth:     NewSessionAuth(sessions, testCookie),
		hub:      NewRelayHub(),
	}
}

// login はusernameのセッションを作成し、Cookieヘッダーの値を返します
func (f *fixture) login(t *testing.T, username string) string {
	t.Helper()
	token, _, err := f.sessions.Create(context.Background(), username)
	require.NoError(t, err)
	return testCookie + "=" + token
}

// apiRouter はテスト用にAPIのルートを組み立てます
func (f *fixture) apiRouter() http.Handler {
	rooms := NewRoomHandler(f.rooms)
	authH := NewAuthHandler(service.NewAuthService(f.store), f.sessions, testCookie)

	r := chi.NewRouter()
	r.Post("/login", authH.Login)
	r.Group(func(r chi.Router) {
		r.Use(f.auth.Middleware)
		r.Get("/chat", rooms.List)
		r.Post("/chat", rooms.Create)
		r.Get("/chat/{roomId}", rooms.Get)
		r.Get("/chat/{roomId}/messages", rooms.Messages)
		r.Post("/chat/{roomId}/messages", rooms.AddMessages)
		r.Get("/profile", authH.Profile)
		r.Get("/logout", authH.Logout)
	})
	return r
}
