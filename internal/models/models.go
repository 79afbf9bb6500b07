// Package models はアプリケーションで使用するデータ構造を定義します
package models

import "time"

// DefaultRoomImage は画像が未設定のルームに返すアイコン
const DefaultRoomImage = "/assets/default-room-icon.png"

// Room はチャットルームの情報を表します
type Room struct {
	ID    string `json:"_id"`             // ルームの一意な識別子（MongoDBのObjectIDの16進表現、または文字列ID）
	Name  string `json:"name"`            // 表示名
	Image string `json:"image,omitempty"` // アイコン画像のパス（オプショナル）
}

// Message はリレーで中継される1件のチャットメッセージです
// Textは中継前にHTMLエスケープ済みです
type Message struct {
	ID       string `json:"id,omitempty" bson:"id,omitempty"`         // メッセージID
	RoomID   string `json:"roomId,omitempty" bson:"roomId,omitempty"` // 宛先ルームID
	Username string `json:"username" bson:"username"`                 // 送信者（セッションから解決したユーザー名）
	Text     string `json:"text" bson:"text"`                         // 本文
}

// Conversation はルームのメッセージを一定数ごとにまとめて永続化したものです
type Conversation struct {
	ID        string    `json:"_id,omitempty" bson:"-"`
	RoomID    string    `json:"room_id" bson:"room_id"`
	Timestamp int64     `json:"timestamp" bson:"timestamp"` // UNIXエポックからのミリ秒
	Messages  []Message `json:"messages" bson:"messages"`
}

// User はログイン可能なユーザーを表します
// Passwordはbcryptハッシュ、TeamName/PlayerNameはクイズ形式のログインで使う組です
type User struct {
	Username   string `json:"username" bson:"username"`
	Password   string `json:"-" bson:"password,omitempty"`
	TeamName   string `json:"teamName,omitempty" bson:"teamName,omitempty"`
	PlayerName string `json:"-" bson:"playerName,omitempty"`
}

// Session はセッショントークンに紐づくログイン情報です
type Session struct {
	Username string    `json:"username"`
	Created  time.Time `json:"created"`
	Expires  time.Time `json:"expires"`
}

// Expired はセッションが期限切れかどうかを返します
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.Expires)
}

// NowMillis は現在時刻をミリ秒のUNIXタイムスタンプで返します
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
