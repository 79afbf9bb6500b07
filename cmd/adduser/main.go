// adduser はログイン可能なユーザーをストアに登録します
//
//	go run ./cmd/adduser -username alice -password secret
//	go run ./cmd/adduser -team Raptors -player "Kyle Lowry"
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/roomchat/chat-server/internal/config"
	"github.com/roomchat/chat-server/internal/models"
	"github.com/roomchat/chat-server/internal/repo"
	"github.com/roomchat/chat-server/internal/service"
)

func main() {
	username := flag.String("username", "", "login name")
	password := flag.String("password", "", "password (stored as a bcrypt hash)")
	team := flag.String("team", "", "team name (alternative login name)")
	player := flag.String("player", "", "player name used as the credential for -team")
	flag.Parse()

	u, err := buildUser(*username, *password, *team, *player)
	if err != nil {
		log.Fatalf("invalid arguments: %v", err)
	}

	cfg := config.Load()
	store := repo.NewMongoStore(cfg.MongoURI, cfg.MongoDB, cfg.ConversationMerge)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	defer store.Close(context.Background())

	if err := store.PutUser(ctx, u); err != nil {
		log.Fatalf("failed to save user: %v", err)
	}
	log.Printf("user saved: username=%s, db=%s", u.Username, cfg.MongoDB)
}

func buildUser(username, password, team, player string) (models.User, error) {
	u := models.User{Username: username, TeamName: team, PlayerName: player}
	if u.Username == "" {
		u.Username = team
	}
	if u.Username == "" {
		return models.User{}, service.ErrCredentialsRequired
	}
	if password == "" && player == "" {
		return models.User{}, service.ErrCredentialsRequired
	}
	if password != "" {
		hash, err := service.HashPassword(password)
		if err != nil {
			return models.User{}, err
		}
		u.Password = hash
	}
	return u, nil
}
