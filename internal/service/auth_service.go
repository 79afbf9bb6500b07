package service

import (
	"context"
	"strings"

	"github.com/roomchat/chat-server/internal/models"
	"github.com/roomchat/chat-server/internal/repo"
	"golang.org/x/crypto/bcrypt"
)

// AuthService はログイン時の資格情報を検証します
type AuthService struct {
	users repo.UserRepo
}

func NewAuthService(users repo.UserRepo) *AuthService {
	return &AuthService{users: users}
}

// Authenticate はユーザー名とパスワードを検証し、ユーザーを返します
// パスワードハッシュを持つユーザーはbcryptで、
// チーム名/選手名の組で登録されたユーザーは選手名との一致（前後の空白と大文字小文字を無視）で判定します
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.User{}, ErrCredentialsRequired
	}
	u, ok, err := s.users.GetUser(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	if !checkCredential(u, password) {
		return models.User{}, ErrAuthenticationFailed
	}
	return u, nil
}

func checkCredential(u models.User, password string) bool {
	switch {
	case u.Password != "":
		return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
	case u.PlayerName != "":
		return strings.EqualFold(strings.TrimSpace(password), strings.TrimSpace(u.PlayerName))
	default:
		return false
	}
}

// HashPassword はユーザー登録用にbcryptハッシュを生成します
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
