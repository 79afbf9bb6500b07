package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/roomchat/chat-server/internal/service"
)

// AuthHandler はログイン、ログアウト、プロフィールを処理します
type AuthHandler struct {
	auth       *service.AuthService
	sessions   *service.SessionService
	cookieName string
}

func NewAuthHandler(auth *service.AuthService, sessions *service.SessionService, cookieName string) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, cookieName: cookieName}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if isFormRequest(r) {
		// PostFormValueはurlencodedとmultipartの両方を解析する
		in = loginRequest{Username: r.PostFormValue("username"), Password: r.PostFormValue("password")}
	} else if !decodeJSON(w, r, &in) {
		return
	}

	user, err := h.auth.Authenticate(r.Context(), in.Username, in.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCredentialsRequired):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrAuthenticationFailed):
			log.Printf("Login rejected: username=%s, error=%v", strings.TrimSpace(in.Username), err)
			respondError(w, http.StatusUnauthorized, "Incorrect username or password")
		default:
			log.Printf("Login error: username=%s, error=%v", strings.TrimSpace(in.Username), err)
			respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	token, _, err := h.sessions.Create(r.Context(), user.Username)
	if err != nil {
		log.Printf("Create session error: username=%s, error=%v", user.Username, err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessions.MaxAge().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]any{"message": "Authentication successful", "username": user.Username})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), SessionTokenFrom(r.Context())); err != nil {
		log.Printf("Delete session error: username=%s, error=%v", UsernameFrom(r.Context()), err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"username": UsernameFrom(r.Context())})
}
