package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/roomchat/chat-server/internal/models"
	"github.com/roomchat/chat-server/internal/repo"
)

// RoomService はルームと会話履歴のビジネスロジックを担当します
// ルーム作成時にはリレーのバッファも用意します
type RoomService struct {
	rooms  repo.RoomRepo
	convs  repo.ConversationRepo
	buffer *MessageBuffer
}

// NewRoomService は新しいRoomServiceを作成します
func NewRoomService(rooms repo.RoomRepo, convs repo.ConversationRepo, buffer *MessageBuffer) *RoomService {
	return &RoomService{rooms: rooms, convs: convs, buffer: buffer}
}

// RoomSummary はルーム一覧の1要素です
// Messagesは永続化前のリレーバッファの内容です
type RoomSummary struct {
	models.Room
	Messages []models.Message `json:"messages"`
}

// PrimeBuffers はストアに存在するすべてのルームのバッファを用意します（起動時に使用）
func (s *RoomService) PrimeBuffers(ctx context.Context) (int, error) {
	rooms, err := s.rooms.GetRooms(ctx)
	if err != nil {
		return 0, fmt.Errorf("get rooms: %w", err)
	}
	for _, r := range rooms {
		s.buffer.InitRoom(r.ID)
	}
	return len(rooms), nil
}

// List はすべてのルームを、バッファ中のメッセージと共に返します
func (s *RoomService) List(ctx context.Context) ([]RoomSummary, error) {
	rooms, err := s.rooms.GetRooms(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		if r.Image == "" {
			r.Image = models.DefaultRoomImage
		}
		out = append(out, RoomSummary{Room: r, Messages: s.buffer.Snapshot(r.ID)})
	}
	return out, nil
}

// Get はルームを返します
// 存在しない場合はErrRoomNotFoundを返します
func (s *RoomService) Get(ctx context.Context, roomId string) (models.Room, error) {
	room, ok, err := s.rooms.GetRoom(ctx, roomId)
	if err != nil {
		return models.Room{}, err
	}
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}
	return room, nil
}

// Create はルームを作成し、リレーのバッファを初期化します
func (s *RoomService) Create(ctx context.Context, name, image string) (models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Room{}, ErrRoomNameRequired
	}
	room, err := s.rooms.AddRoom(ctx, models.Room{Name: name, Image: strings.TrimSpace(image)})
	if err != nil {
		return models.Room{}, err
	}
	s.buffer.InitRoom(room.ID)

	log.Printf("Room created: roomId=%s, name=%s", room.ID, room.Name)
	return room, nil
}

// LastConversation はbefore（ミリ秒）より前の最新の会話を返します
func (s *RoomService) LastConversation(ctx context.Context, roomId string, before int64) (models.Conversation, bool, error) {
	return s.convs.GetLastConversation(ctx, roomId, before)
}

// AddConversation は会話を明示的に保存します
// timestampが0の場合は現在時刻を使い、本文はリレーと同じくエスケープします
func (s *RoomService) AddConversation(ctx context.Context, roomId string, timestamp int64, msgs []models.Message) (models.Conversation, error) {
	if msgs == nil {
		return models.Conversation{}, fmt.Errorf("%w: messages required", ErrConversationInvalid)
	}
	if _, err := s.Get(ctx, roomId); err != nil {
		return models.Conversation{}, err
	}
	if timestamp == 0 {
		timestamp = models.NowMillis()
	}

	clean := make([]models.Message, len(msgs))
	for i, m := range msgs {
		m.RoomID = roomId
		m.Text = EscapeHTML(m.Text)
		clean[i] = m
	}
	return s.convs.AddConversation(ctx, models.Conversation{RoomID: roomId, Timestamp: timestamp, Messages: clean})
}
