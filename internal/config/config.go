// Package config はアプリケーションの設定を管理します
// 環境変数から設定を読み込み、デフォルト値を提供します
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAPIAddr           = ":3000"                     // APIサーバーのデフォルトリッスンアドレス
	defaultWSAddr            = ":8000"                     // リレー(WebSocket)サーバーのデフォルトリッスンアドレス
	defaultStoreDriver       = "mongo"                     // 永続化ドライバ (mongo | memory)
	defaultMongoURI          = "mongodb://127.0.0.1:27017" // MongoDBの接続先
	defaultMongoDB           = "cpen322-messenger"         // MongoDBのデータベース名
	defaultSessionStore      = "memory"                    // セッションストア (memory | redis)
	defaultRedisAddr         = "localhost:6379"            // Redisのデフォルト接続先
	defaultCookieName        = "cpen322-session"           // セッションCookie名
	defaultSessionMaxAgeSec  = 10 * 60                     // セッションの有効期限（10分）
	defaultMessageBatchSize  = 10                          // 会話として保存するまでのメッセージ数
	defaultConversationMerge = 0                           // 直前の会話へ追記する猶予（秒、0で無効）
)

// defaultAllowedOrigins はCORSで許可するデフォルトのオリジン一覧
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
}

// Config はアプリケーションの設定を保持します
type Config struct {
	APIAddr           string        // APIサーバーのリッスンアドレス
	WSAddr            string        // リレーサーバーのリッスンアドレス
	StoreDriver       string        // 永続化ドライバ
	MongoURI          string        // MongoDBの接続先
	MongoDB           string        // MongoDBのデータベース名
	SessionStore      string        // セッションストアの種類
	RedisAddr         string        // Redisの接続先
	CookieName        string        // セッションCookie名
	SessionMaxAge     time.Duration // セッションとCookieの有効期限
	MessageBatchSize  int           // ルームごとのバッファをフラッシュする閾値
	ConversationMerge time.Duration // 会話マージの猶予
	AllowedOrigin     []string      // CORSで許可するオリジン一覧
	StaticDir         string        // クライアントのビルド成果物（空なら配信しない）
}

// Load は環境変数から設定を読み込みます
// 環境変数が設定されていない場合はデフォルト値を使用します
func Load() Config {
	return Config{
		APIAddr:           envOr("API_ADDR", defaultAPIAddr),
		WSAddr:            envOr("WS_ADDR", defaultWSAddr),
		StoreDriver:       strings.ToLower(envOr("STORE_DRIVER", defaultStoreDriver)),
		MongoURI:          envOr("MONGO_URI", defaultMongoURI),
		MongoDB:           envOr("MONGO_DB", defaultMongoDB),
		SessionStore:      strings.ToLower(envOr("SESSION_STORE", defaultSessionStore)),
		RedisAddr:         envOr("REDIS_ADDR", defaultRedisAddr),
		CookieName:        envOr("SESSION_COOKIE_NAME", defaultCookieName),
		SessionMaxAge:     sec(envPositiveInt("SESSION_MAX_AGE_SEC", defaultSessionMaxAgeSec)),
		MessageBatchSize:  envPositiveInt("MESSAGE_BATCH_SIZE", defaultMessageBatchSize),
		ConversationMerge: sec(envInt("CONVERSATION_MERGE_SEC", defaultConversationMerge)),
		AllowedOrigin:     envCSV("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins),
		StaticDir:         os.Getenv("STATIC_DIR"),
	}
}

func sec(v int) time.Duration {
	return time.Duration(v) * time.Second
}

// envOr は環境変数から文字列を取得します
// 環境変数が設定されていない場合はデフォルト値を返します
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt は環境変数から整数を取得します
// 環境変数が設定されていない、または無効な値の場合はデフォルト値を返します
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid %s=%s, fallback to default (%d)", key, v, def)
			return def
		}
		return i
	}
	return def
}

// envPositiveInt は envInt と同様ですが、0以下の値もデフォルト値に置き換えます
func envPositiveInt(key string, def int) int {
	i := envInt(key, def)
	if i <= 0 {
		log.Printf("invalid %s=%d, fallback to default (%d)", key, i, def)
		return def
	}
	return i
}

// envCSV は環境変数からカンマ区切りの文字列リストを取得します
// 環境変数が設定されていない、または空の場合はデフォルト値を返します
func envCSV(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
