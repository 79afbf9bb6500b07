package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/redis/go-redis/v9"
	"github.com/roomchat/chat-server/internal/config"
	"github.com/roomchat/chat-server/internal/handlers"
	httpx "github.com/roomchat/chat-server/internal/http"
	"github.com/roomchat/chat-server/internal/repo"
	"github.com/roomchat/chat-server/internal/service"
)

const (
	shutdownTimeout = 30 * time.Second
	primeTimeout    = 15 * time.Second
)

func main() {
	cfg := config.Load()

	store := newStore(cfg)
	sessionRepo, rdb := newSessionRepo(cfg)

	sessions := service.NewSessionService(sessionRepo, cfg.SessionMaxAge)
	buffer := service.NewMessageBuffer(store, cfg.MessageBatchSize)
	rooms := service.NewRoomService(store, store, buffer)
	auth := service.NewAuthService(store)

	// 既存ルームのバッファを用意（ストアに繋がらない場合も起動は続ける）
	ctx, cancel := context.WithTimeout(context.Background(), primeTimeout)
	if n, err := rooms.PrimeBuffers(ctx); err != nil {
		log.Printf("failed to prime message buffers: %v", err)
	} else {
		log.Printf("message buffers ready for %d rooms", n)
	}
	cancel()

	sessionAuth := handlers.NewSessionAuth(sessions, cfg.CookieName)
	h := httpx.Handlers{
		Room:    handlers.NewRoomHandler(rooms),
		Auth:    handlers.NewAuthHandler(auth, sessions, cfg.CookieName),
		Health:  handlers.NewHealthHandler(store),
		Session: sessionAuth,
	}
	if cfg.StaticDir != "" {
		h.Static = handlers.SPAHandler(cfg.StaticDir)
	}
	hub := handlers.NewRelayHub()
	relay := handlers.NewRelayHandler(sessionAuth, buffer, hub, cfg.AllowedOrigin)

	apiSrv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           httpx.NewRouter(h, cfg.AllowedOrigin),
		ReadHeaderTimeout: 5 * time.Second,
	}
	relaySrv := &http.Server{
		Addr:              cfg.WSAddr,
		Handler:           httpx.NewRelayRouter(relay),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go serve("api", apiSrv)
	go serve("relay", relaySrv)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"api-server": func(ctx context.Context) error {
				return apiSrv.Shutdown(ctx)
			},
			"relay-server": func(ctx context.Context) error {
				// Shutdownはハイジャック済みの接続を閉じないため、ハブからも閉じる
				err := relaySrv.Shutdown(ctx)
				hub.CloseAll()
				return err
			},
			"persistence": func(ctx context.Context) error {
				flushErr := buffer.FlushAll(ctx)
				if flushErr != nil {
					log.Printf("failed to flush message buffers: %v", flushErr)
				}
				return errors.Join(flushErr, store.Close(ctx))
			},
			"sessions": func(ctx context.Context) error {
				if rdb == nil {
					return nil
				}
				return rdb.Close()
			},
		},
	)

	exitCode := <-wait
	log.Printf("server exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func serve(name string, srv *http.Server) {
	log.Printf("%s listening on %s", name, srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("%s server error: %v", name, err)
	}
}

func newStore(cfg config.Config) repo.Store {
	switch cfg.StoreDriver {
	case "memory":
		log.Println("using in-memory store")
		return repo.NewMemoryStore(cfg.ConversationMerge)
	case "mongo":
		return repo.NewMongoStore(cfg.MongoURI, cfg.MongoDB, cfg.ConversationMerge)
	default:
		log.Fatalf("unknown STORE_DRIVER: %s", cfg.StoreDriver)
		return nil
	}
}

// newSessionRepo はセッションストアを作成します
// Redisを使う場合はクライアントも返します（シャットダウン時に閉じるため）
func newSessionRepo(cfg config.Config) (repo.SessionRepo, *redis.Client) {
	switch cfg.SessionStore {
	case "memory":
		return repo.NewMemorySessionRepo(), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			PoolSize:     10,              // 接続プールサイズ
			MinIdleConns: 5,               // 最小アイドル接続数
			MaxRetries:   3,               // リトライ回数
			DialTimeout:  5 * time.Second, // 接続タイムアウト
			ReadTimeout:  3 * time.Second, // 読み込みタイムアウト
			WriteTimeout: 3 * time.Second, // 書き込みタイムアウト
			PoolTimeout:  4 * time.Second, // プールからの取得タイムアウト
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		log.Println("connected to redis")
		return repo.NewRedisSessionRepo(rdb), rdb
	default:
		log.Fatalf("unknown SESSION_STORE: %s", cfg.SessionStore)
		return nil, nil
	}
}
