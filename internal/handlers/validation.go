package handlers

import (
	"fmt"
	"strconv"

	"github.com/roomchat/chat-server/internal/models"
)

// validateRoomId はルームIDのバリデーションを行います
// ルームIDが空の場合はエラーを返します
func validateRoomId(roomId string) error {
	if normalizeID(roomId) == "" {
		return fmt.Errorf("roomId required")
	}
	return nil
}

// parseBefore はクエリのbefore（ミリ秒）を解釈します
// 未指定の場合は現在時刻を返します
func parseBefore(raw string) (int64, error) {
	if raw == "" {
		return models.NowMillis(), nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("before must be an integer timestamp in milliseconds")
	}
	return v, nil
}
