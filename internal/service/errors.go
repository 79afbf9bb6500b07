package service

import (
	"errors"

	"github.com/roomchat/chat-server/internal/repo"
)

// カスタムエラー定義
var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomNameRequired     = repo.ErrRoomNameRequired
	ErrConversationInvalid  = repo.ErrConversationInvalid
	ErrUserNotFound         = errors.New("user not found")
	ErrCredentialsRequired  = errors.New("username and password are required")
	ErrAuthenticationFailed = errors.New("authentication failed")

	// セッション関連（HTTPでは401またはログインページへのリダイレクトになる）
	ErrNoSessionCookie = errors.New("no cookie header found")
	ErrInvalidSession  = errors.New("invalid session token")
)

// IsSessionError はセッション由来のエラーかどうかを返します
func IsSessionError(err error) bool {
	return errors.Is(err, ErrNoSessionCookie) || errors.Is(err, ErrInvalidSession)
}

// IsValidationError は入力値の不備によるエラーかどうかを返します
func IsValidationError(err error) bool {
	return errors.Is(err, ErrRoomNameRequired) ||
		errors.Is(err, ErrConversationInvalid) ||
		errors.Is(err, ErrCredentialsRequired)
}
