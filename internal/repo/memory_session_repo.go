package repo

import (
	"context"
	"sync"
	"time"

	"github.com/roomchat/chat-server/internal/models"
)

// MemorySessionRepo はセッションをプロセス内のマップに保持します
// 各エントリはタイマーによりttl経過後に削除されます
type MemorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
}

type memorySession struct {
	session models.Session
	timer   *time.Timer
}

func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{sessions: make(map[string]*memorySession)}
}

func (r *MemorySessionRepo) PutSession(ctx context.Context, token string, s models.Session, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[token]; exists {
		return ErrSessionExists
	}
	e := &memorySession{session: s}
	e.timer = time.AfterFunc(ttl, func() { r.expire(token, e) })
	r.sessions[token] = e
	return nil
}

// expire はタイマーから呼ばれ、同じエントリが残っていれば削除します
func (r *MemorySessionRepo) expire(token string, e *memorySession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[token]; ok && cur == e {
		delete(r.sessions, token)
	}
}

func (r *MemorySessionRepo) GetSession(ctx context.Context, token string) (models.Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[token]
	if !ok {
		return models.Session{}, false, nil
	}
	return e.session, true, nil
}

func (r *MemorySessionRepo) DeleteSession(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[token]; ok {
		e.timer.Stop()
		delete(r.sessions, token)
	}
	return nil
}

// Len は保持しているセッション数を返します
func (r *MemorySessionRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
