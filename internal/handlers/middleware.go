package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/roomchat/chat-server/internal/service"
)

type ctxKey int

const (
	usernameKey ctxKey = iota
	sessionTokenKey
)

// UsernameFrom はセッションミドルウェアが設定したユーザー名を返します
func UsernameFrom(ctx context.Context) string {
	v, _ := ctx.Value(usernameKey).(string)
	return v
}

// SessionTokenFrom はセッションミドルウェアが設定したトークンを返します
func SessionTokenFrom(ctx context.Context) string {
	v, _ := ctx.Value(sessionTokenKey).(string)
	return v
}

// SessionAuth はCookieのセッショントークンを検証します
// APIのミドルウェアとリレーのハンドシェイクで共有されます
type SessionAuth struct {
	sessions   *service.SessionService
	cookieName string
}

func NewSessionAuth(sessions *service.SessionService, cookieName string) *SessionAuth {
	return &SessionAuth{sessions: sessions, cookieName: cookieName}
}

// Resolve はリクエストのCookieからユーザー名とトークンを解決します
// Cookieヘッダーがない場合はErrNoSessionCookie、
// セッションCookieがない、または無効な場合はErrInvalidSessionを返します
func (a *SessionAuth) Resolve(r *http.Request) (string, string, error) {
	header := strings.Join(r.Header.Values("Cookie"), "; ")
	if strings.TrimSpace(header) == "" {
		return "", "", service.ErrNoSessionCookie
	}
	token := ParseCookieHeader(header)[a.cookieName]
	if token == "" {
		return "", "", service.ErrInvalidSession
	}
	username, ok := a.sessions.Username(r.Context(), token)
	if !ok {
		return "", "", service.ErrInvalidSession
	}
	return username, token, nil
}

// Middleware は有効なセッションを持つリクエストだけを次のハンドラーに渡します
func (a *SessionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, token, err := a.Resolve(r)
		if err != nil {
			writeSessionError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), usernameKey, username)
		ctx = context.WithValue(ctx, sessionTokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeSessionError はブラウザからの画面遷移ならログインページへリダイレクトし、
// それ以外は401を返します
func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("Session rejected: method=%s, path=%s, error=%v", r.Method, r.URL.Path, err)
	if prefersHTML(r.Header.Get("Accept")) {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	respondError(w, http.StatusUnauthorized, err.Error())
}

// prefersHTML はAcceptヘッダーでtext/htmlがapplication/jsonより先に現れるかを返します
func prefersHTML(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, _ := strings.Cut(part, ";")
		switch strings.ToLower(strings.TrimSpace(mediaType)) {
		case "text/html":
			return true
		case "application/json":
			return false
		}
	}
	return false
}
