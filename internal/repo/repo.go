// Package repo はデータ永続化を担当します
// ルーム・会話・ユーザーはドキュメントストア（MongoDB、またはインメモリ）に、
// セッションはTTL付きのキーとしてメモリまたはRedisに保存します
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/roomchat/chat-server/internal/models"
)

var (
	ErrRoomNameRequired    = errors.New("the name field is required")
	ErrConversationInvalid = errors.New("invalid conversation")
	ErrSessionExists       = errors.New("session already exists")
	ErrStoreNotReady       = errors.New("store is not connected")
)

type RoomRepo interface {
	GetRooms(ctx context.Context) ([]models.Room, error)
	GetRoom(ctx context.Context, roomId string) (models.Room, bool, error)
	AddRoom(ctx context.Context, room models.Room) (models.Room, error)
}

type ConversationRepo interface {
	// GetLastConversation は before（ミリ秒）より前で最も新しい会話を返します
	GetLastConversation(ctx context.Context, roomId string, before int64) (models.Conversation, bool, error)
	AddConversation(ctx context.Context, conv models.Conversation) (models.Conversation, error)
}

type UserRepo interface {
	GetUser(ctx context.Context, username string) (models.User, bool, error)
}

// Store はドキュメントストア全体のインターフェース
type Store interface {
	RoomRepo
	ConversationRepo
	UserRepo

	Status(ctx context.Context) StoreStatus
	Close(ctx context.Context) error
}

// StoreStatus は接続状態を表します
type StoreStatus struct {
	Driver string `json:"driver"`
	URL    string `json:"url,omitempty"`
	DB     string `json:"db,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SessionRepo はセッショントークンとログイン情報の対応を保持します
// ttl経過後のエントリは自動的に削除されます
type SessionRepo interface {
	PutSession(ctx context.Context, token string, s models.Session, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (models.Session, bool, error)
	DeleteSession(ctx context.Context, token string) error
}
