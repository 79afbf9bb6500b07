package repo

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roomchat/chat-server/internal/idgen"
	"github.com/roomchat/chat-server/internal/models"
)

// MemoryStore はプロセス内メモリだけで動くStoreの実装です
// 再起動するとデータは失われます（開発用、テスト用）
type MemoryStore struct {
	mu            sync.RWMutex
	rooms         []models.Room
	roomIndex     map[string]int                   // ルームID -> rooms内の位置
	conversations map[string][]models.Conversation // ルームID -> 会話（timestamp昇順）
	users         map[string]models.User           // 小文字のユーザー名 -> ユーザー
	mergeWindow   time.Duration
	seq           int
}

func NewMemoryStore(mergeWindow time.Duration) *MemoryStore {
	return &MemoryStore{
		roomIndex:     make(map[string]int),
		conversations: make(map[string][]models.Conversation),
		users:         make(map[string]models.User),
		mergeWindow:   mergeWindow,
	}
}

func (s *MemoryStore) Status(ctx context.Context) StoreStatus {
	return StoreStatus{Driver: "memory"}
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func (s *MemoryStore) GetRooms(ctx context.Context) ([]models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Room, len(s.rooms))
	copy(out, s.rooms)
	return out, nil
}

func (s *MemoryStore) GetRoom(ctx context.Context, roomId string) (models.Room, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.roomIndex[roomId]
	if !ok {
		return models.Room{}, false, nil
	}
	return s.rooms[i], true, nil
}

func (s *MemoryStore) AddRoom(ctx context.Context, room models.Room) (models.Room, error) {
	if err := validateRoom(room); err != nil {
		return models.Room{}, err
	}
	const maxRetries = 10 // ID生成の最大リトライ回数

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < maxRetries; i++ {
		id, err := idgen.NewRoomID()
		if err != nil {
			return models.Room{}, err
		}
		if _, exists := s.roomIndex[id]; exists {
			continue
		}
		room.ID = id
		s.roomIndex[id] = len(s.rooms)
		s.rooms = append(s.rooms, room)
		return room, nil
	}
	return models.Room{}, errors.New("failed to generate unique room ID after multiple attempts")
}

func (s *MemoryStore) GetLastConversation(ctx context.Context, roomId string, before int64) (models.Conversation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	convs := s.conversations[roomId]
	// timestamp昇順なので、before未満の最後の要素が最新
	i := sort.Search(len(convs), func(i int) bool { return convs[i].Timestamp >= before })
	if i == 0 {
		return models.Conversation{}, false, nil
	}
	return cloneConversation(convs[i-1]), true, nil
}

func (s *MemoryStore) AddConversation(ctx context.Context, conv models.Conversation) (models.Conversation, error) {
	if err := validateConversation(conv); err != nil {
		return models.Conversation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	convs := s.conversations[conv.RoomID]
	if window := s.mergeWindow.Milliseconds(); window > 0 && len(convs) > 0 {
		now := models.NowMillis()
		last := convs[len(convs)-1]
		if mergeable(last, now, window) {
			last.Messages = append(append([]models.Message{}, last.Messages...), conv.Messages...)
			last.Timestamp = now
			convs[len(convs)-1] = last
			sortConversations(convs)
			return cloneConversation(last), nil
		}
	}

	s.seq++
	conv = cloneConversation(conv)
	conv.ID = "conv-" + strconv.Itoa(s.seq)
	convs = append(convs, conv)
	sortConversations(convs)
	s.conversations[conv.RoomID] = convs
	return cloneConversation(conv), nil
}

func (s *MemoryStore) GetUser(ctx context.Context, username string) (models.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := strings.ToLower(username)
	if u, ok := s.users[key]; ok {
		return u, true, nil
	}
	for _, u := range s.users {
		if u.TeamName != "" && strings.EqualFold(u.TeamName, username) {
			return u, true, nil
		}
	}
	return models.User{}, false, nil
}

// PutUser はユーザーを登録します（初期データ投入とテスト用）
func (s *MemoryStore) PutUser(ctx context.Context, u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Username == "" {
		u.Username = u.TeamName
	}
	s.users[strings.ToLower(u.Username)] = u
	return nil
}

func sortConversations(convs []models.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool { return convs[i].Timestamp < convs[j].Timestamp })
}

func cloneConversation(c models.Conversation) models.Conversation {
	msgs := make([]models.Message, len(c.Messages))
	copy(msgs, c.Messages)
	c.Messages = msgs
	return c
}
