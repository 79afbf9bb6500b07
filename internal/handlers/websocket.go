package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roomchat/chat-server/internal/idgen"
	"github.com/roomchat/chat-server/internal/models"
	"github.com/roomchat/chat-server/internal/service"
)

const (
	writeWait      = 10 * time.Second    // 1フレームの書き込み期限
	pongWait       = 60 * time.Second    // pongを待つ期限
	pingPeriod     = (pongWait * 9) / 10 // pingの送信間隔（pongWaitより短くする）
	maxMessageSize = 64 * 1024           // 受信フレームの上限
	sendBufferSize = 64                  // クライアントごとの送信キュー
)

// RelayHub はリレーに接続中のすべてのクライアントを管理します
// ルームによる絞り込みは行わず、メッセージは送信者以外の全員に届きます
// スレッドセーフな実装により、複数のgoroutineから同時にアクセス可能です
type RelayHub struct {
	clients map[string]*Client // クライアントIDをキーとしたマップ
	mu      sync.RWMutex       // 読み書きのロック
}

// Client は1つのWebSocket接続を表します
// gorillaの接続は同時に1つのgoroutineからしか書き込めないため、
// 送信はsendチャネル経由でwritePumpが行います
type Client struct {
	id       string          // 接続ごとのULID
	username string          // セッションから解決したユーザー名
	conn     *websocket.Conn // WebSocket接続
	send     chan []byte     // 送信待ちのフレーム
}

// inboundMessage はクライアントから受信するメッセージの構造
type inboundMessage struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

func NewRelayHub() *RelayHub {
	return &RelayHub{clients: make(map[string]*Client)}
}

// Len は接続中のクライアント数を返します
func (hub *RelayHub) Len() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}

// register はクライアントを登録します
func (hub *RelayHub) register(c *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.clients[c.id] = c
}

// unregister はクライアントの登録を解除し、送信キューを閉じます
func (hub *RelayHub) unregister(c *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if _, ok := hub.clients[c.id]; ok {
		delete(hub.clients, c.id)
		close(c.send)
	}
}

// broadcast は送信者以外の全クライアントにフレームを送ります
// 送信キューがあふれているクライアントには届きません
func (hub *RelayHub) broadcast(data []byte, excludeId string) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for id, c := range hub.clients {
		if id == excludeId {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Printf("Send buffer full, dropping message: clientId=%s, username=%s", id, c.username)
		}
	}
}

// CloseAll はすべての接続を閉じます（シャットダウン時に使用）
func (hub *RelayHub) CloseAll() {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for id, c := range hub.clients {
		delete(hub.clients, id)
		close(c.send)
	}
}

// RelayHandler はリレーのWebSocket接続を処理するハンドラー
type RelayHandler struct {
	auth     *SessionAuth
	buffer   *service.MessageBuffer
	hub      *RelayHub
	upgrader websocket.Upgrader
}

// NewRelayHandler は新しいRelayHandlerを作成します
// allowedOriginsが空の場合はOriginを検査しません
func NewRelayHandler(auth *SessionAuth, buffer *service.MessageBuffer, hub *RelayHub, allowedOrigins []string) *RelayHandler {
	return &RelayHandler{
		auth:   auth,
		buffer: buffer,
		hub:    hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

// originChecker はブラウザからの接続を許可されたOriginに限定します
// Originヘッダーのないクライアントは許可します
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeHTTP はWebSocket接続を処理します
// 接続後、以下の処理を行います:
// 1. Cookieのセッションを検証（無効なら即座にクローズ）
// 2. クライアントの登録と送信goroutineの起動
// 3. メッセージ受信ループ
// 4. 切断時の登録解除
func (h *RelayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username, _, authErr := h.auth.Resolve(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	if authErr != nil {
		log.Printf("WebSocket rejected: remote=%s, error=%v", r.RemoteAddr, authErr)
		closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Invalid session")
		_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
		conn.Close()
		return
	}

	client := &Client{
		id:       idgen.NewULID(),
		username: username,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
	}
	h.hub.register(client)
	go client.writePump()

	log.Printf("WebSocket connected: clientId=%s, username=%s", client.id, username)

	h.readLoop(client)

	h.hub.unregister(client)
	log.Printf("WebSocket disconnected: clientId=%s, username=%s", client.id, username)
}

// readLoop は接続が切れるまでメッセージを受信します
func (h *RelayHandler) readLoop(c *Client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: clientId=%s, error=%v", c.id, err)
			}
			return
		}
		h.handleMessage(c, data)
	}
}

// handleMessage は受信したメッセージを検証・エスケープし、
// 他のクライアントへ中継してからルームのバッファに追加します
// 不正なメッセージはログに残して破棄します（接続は維持）
func (h *RelayHandler) handleMessage(c *Client, data []byte) {
	var in inboundMessage
	if err := json.Unmarshal(data, &in); err != nil {
		log.Printf("Failed to parse message: clientId=%s, username=%s, error=%v", c.id, c.username, err)
		return
	}
	if in.RoomID == "" || in.Text == "" {
		log.Printf("Dropping incomplete message: clientId=%s, username=%s, roomId=%q", c.id, c.username, in.RoomID)
		return
	}

	msg := models.Message{
		ID:       idgen.NewMessageID(),
		RoomID:   in.RoomID,
		Username: c.username,
		Text:     service.EscapeHTML(in.Text),
	}
	out, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}
	h.hub.broadcast(out, c.id)

	if !h.buffer.Append(msg.RoomID, msg) {
		log.Printf("Message not buffered (unknown room): roomId=%s, username=%s", msg.RoomID, c.username)
	}
}

// writePump は送信キューのフレームとpingを書き込みます
// 送信キューが閉じられるとクローズフレームを送って接続を閉じます
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Failed to send message: clientId=%s, error=%v", c.id, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
