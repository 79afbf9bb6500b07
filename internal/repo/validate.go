package repo

import (
	"fmt"
	"strings"

	"github.com/roomchat/chat-server/internal/models"
)

func validateRoom(room models.Room) error {
	if strings.TrimSpace(room.Name) == "" {
		return ErrRoomNameRequired
	}
	return nil
}

func validateConversation(conv models.Conversation) error {
	switch {
	case strings.TrimSpace(conv.RoomID) == "":
		return fmt.Errorf("%w: room_id required", ErrConversationInvalid)
	case conv.Timestamp <= 0:
		return fmt.Errorf("%w: timestamp required", ErrConversationInvalid)
	case conv.Messages == nil:
		return fmt.Errorf("%w: messages required", ErrConversationInvalid)
	}
	return nil
}

// mergeable は直前の会話に追記すべきかを判定します
func mergeable(last models.Conversation, now int64, window int64) bool {
	return window > 0 && now-last.Timestamp < window
}
