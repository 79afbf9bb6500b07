package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/roomchat/chat-server/internal/models"
)

// RedisSessionRepo はセッションをRedisのTTL付きキーとして保存します
// プロセスを再起動してもセッションが維持されます
type RedisSessionRepo struct{ rdb *redis.Client }

func NewRedisSessionRepo(rdb *redis.Client) *RedisSessionRepo {
	return &RedisSessionRepo{rdb: rdb}
}

func sessionKey(token string) string {
	return fmt.Sprintf("sessions:%s", token)
}

func (rr *RedisSessionRepo) PutSession(ctx context.Context, token string, s models.Session, ttl time.Duration) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ok, err := rr.rdb.SetArgs(ctx, sessionKey(token), b, redis.SetArgs{Mode: "NX", TTL: ttl}).Result()
	if err == redis.Nil { // 同じトークンが既に存在する
		return ErrSessionExists
	}
	if err != nil {
		return err
	}
	if ok != "OK" {
		return ErrSessionExists
	}
	return nil
}

func (rr *RedisSessionRepo) GetSession(ctx context.Context, token string) (models.Session, bool, error) {
	val, err := rr.rdb.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) { // データがない
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, err
	}
	var s models.Session
	if err := json.Unmarshal(val, &s); err != nil {
		return models.Session{}, false, err
	}
	return s, true, nil
}

func (rr *RedisSessionRepo) DeleteSession(ctx context.Context, token string) error {
	return rr.rdb.Del(ctx, sessionKey(token)).Err()
}
