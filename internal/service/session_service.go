package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/roomchat/chat-server/internal/idgen"
	"github.com/roomchat/chat-server/internal/models"
	"github.com/roomchat/chat-server/internal/repo"
)

// DefaultSessionMaxAge はセッションの既定の有効期限
const DefaultSessionMaxAge = 10 * time.Minute

// SessionService はセッショントークンの発行・検証・削除を行います
// トークンはランダムな不透明文字列で、署名やローテーションは行いません
type SessionService struct {
	repo   repo.SessionRepo
	maxAge time.Duration
	now    func() time.Time
}

func NewSessionService(r repo.SessionRepo, maxAge time.Duration) *SessionService {
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	return &SessionService{repo: r, maxAge: maxAge, now: time.Now}
}

// MaxAge はCookieに設定する有効期限を返します
func (s *SessionService) MaxAge() time.Duration { return s.maxAge }

// Create はusernameのセッションを作成し、トークンを返します
func (s *SessionService) Create(ctx context.Context, username string) (string, models.Session, error) {
	const maxRetries = 3

	now := s.now()
	sess := models.Session{Username: username, Created: now, Expires: now.Add(s.maxAge)}
	for i := 0; i < maxRetries; i++ {
		token, err := idgen.NewSessionToken()
		if err != nil {
			return "", models.Session{}, err
		}
		err = s.repo.PutSession(ctx, token, sess, s.maxAge)
		if errors.Is(err, repo.ErrSessionExists) {
			continue
		}
		if err != nil {
			return "", models.Session{}, fmt.Errorf("put session: %w", err)
		}
		log.Printf("Session created: username=%s, expires=%s", username, sess.Expires.Format(time.RFC3339))
		return token, sess, nil
	}
	return "", models.Session{}, errors.New("failed to generate unique session token")
}

// Lookup はトークンに対応するセッションを返します
// 存在しない、または期限切れの場合はErrInvalidSessionを返します
func (s *SessionService) Lookup(ctx context.Context, token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, ErrInvalidSession
	}
	sess, ok, err := s.repo.GetSession(ctx, token)
	if err != nil {
		return models.Session{}, fmt.Errorf("get session: %w", err)
	}
	if !ok {
		return models.Session{}, ErrInvalidSession
	}
	if sess.Expired(s.now()) {
		// タイマーより先に期限を迎えた場合もここで弾く
		_ = s.repo.DeleteSession(ctx, token)
		return models.Session{}, ErrInvalidSession
	}
	return sess, nil
}

// Username はトークンに対応するユーザー名を返します
func (s *SessionService) Username(ctx context.Context, token string) (string, bool) {
	sess, err := s.Lookup(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrInvalidSession) {
			log.Printf("Session lookup error: %v", err)
		}
		return "", false
	}
	return sess.Username, true
}

// Delete はセッションを削除します（ログアウト）
func (s *SessionService) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.repo.DeleteSession(ctx, token)
}
