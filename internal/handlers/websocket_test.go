package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roomchat/chat-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelayServer(t *testing.T, f *fixture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRelayHandler(f.auth, f.buffer, f.hub, nil))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, cookie string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if cookie != "" {
		header.Set("Cookie", cookie)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *RelayHub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Len() == n }, 2*time.Second, 10*time.Millisecond)
}

func readMessage(t *testing.T, conn *websocket.Conn) models.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg models.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestRelay_BroadcastEscapesAndSkipsSender(t *testing.T) {
	f := newFixture(t)
	srv := newRelayServer(t, f)
	room, err := f.rooms.Create(context.Background(), "general", "")
	require.NoError(t, err)

	alice := dial(t, srv, f.login(t, "alice"))
	bob := dial(t, srv, f.login(t, "bob"))
	waitClients(t, f.hub, 2)

	require.NoError(t, alice.WriteJSON(map[string]string{
		"roomId":   room.ID,
		"text":     `<b>"hi" & 'bye'</b>`,
		"username": "mallory",
	}))

	got := readMessage(t, bob)
	assert.Equal(t, "&lt;b&gt;&quot;hi&quot; &amp; &#039;bye&#039;&lt;/b&gt;", got.Text)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, room.ID, got.RoomID)
	assert.NotEmpty(t, got.ID)

	// 送信者には届かない
	require.NoError(t, alice.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = alice.ReadMessage()
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())

	buffered := f.buffer.Snapshot(room.ID)
	require.Len(t, buffered, 1)
	assert.Equal(t, got, buffered[0])
}

func TestRelay_InvalidSessionIsClosed(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
	}{
		{name: "no cookie", cookie: ""},
		{name: "unrelated cookie", cookie: "theme=dark"},
		{name: "unknown token", cookie: testCookie + "=0123456789abcdef0123456789abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			srv := newRelayServer(t, f)

			conn := dial(t, srv, tt.cookie)
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
			_, _, err := conn.ReadMessage()

			var closeErr *websocket.CloseError
			require.ErrorAs(t, err, &closeErr)
			assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
			assert.Equal(t, "Invalid session", closeErr.Text)
			assert.Zero(t, f.hub.Len())
		})
	}
}

func TestRelay_DropsMalformedMessages(t *testing.T) {
	f := newFixture(t)
	srv := newRelayServer(t, f)
	room, err := f.rooms.Create(context.Background(), "general", "")
	require.NoError(t, err)

	alice := dial(t, srv, f.login(t, "alice"))
	bob := dial(t, srv, f.login(t, "bob"))
	waitClients(t, f.hub, 2)

	for _, raw := range []string{
		"not json",
		`{"roomId":"` + room.ID + `"}`,
		`{"text":"no room"}`,
		`{"roomId":"` + room.ID + `","text":"valid"}`,
	} {
		require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(raw)))
	}

	got := readMessage(t, bob)
	assert.Equal(t, "valid", got.Text)
	assert.Equal(t, 2, f.hub.Len())
	assert.Len(t, f.buffer.Snapshot(room.ID), 1)
}

func TestRelay_UnknownRoomIsBroadcastButNotBuffered(t *testing.T) {
	f := newFixture(t)
	srv := newRelayServer(t, f)

	alice := dial(t, srv, f.login(t, "alice"))
	bob := dial(t, srv, f.login(t, "bob"))
	waitClients(t, f.hub, 2)

	require.NoError(t, alice.WriteJSON(map[string]string{"roomId": "ghost-room", "text": "anyone?"}))

	got := readMessage(t, bob)
	assert.Equal(t, "ghost-room", got.RoomID)
	assert.Empty(t, f.buffer.Snapshot("ghost-room"))
}

func TestRelay_FlushesBatchToStore(t *testing.T) {
	f := newFixture(t)
	srv := newRelayServer(t, f)
	room, err := f.rooms.Create(context.Background(), "general", "")
	require.NoError(t, err)

	alice := dial(t, srv, f.login(t, "alice"))
	waitClients(t, f.hub, 1)

	for i := 0; i < f.buffer.BatchSize(); i++ {
		require.NoError(t, alice.WriteJSON(map[string]string{"roomId": room.ID, "text": "msg"}))
	}

	var conv models.Conversation
	require.Eventually(t, func() bool {
		c, ok, err := f.store.GetLastConversation(context.Background(), room.ID, models.NowMillis()+1)
		if err != nil || !ok {
			return false
		}
		conv = c
		return true
	}, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, conv.Messages, f.buffer.BatchSize())
	assert.Equal(t, "alice", conv.Messages[0].Username)
	assert.Empty(t, f.buffer.Snapshot(room.ID))
}

func TestRelayHub_CloseAll(t *testing.T) {
	f := newFixture(t)
	srv := newRelayServer(t, f)

	conn := dial(t, srv, f.login(t, "alice"))
	waitClients(t, f.hub, 1)

	f.hub.CloseAll()
	assert.Zero(t, f.hub.Len())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{name: "no origin", origin: "", want: true},
		{name: "allowed", origin: "http://localhost:3000", want: true},
		{name: "other site", origin: "http://evil.example", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, check(req))
		})
	}

	assert.True(t, originChecker(nil)(httptest.NewRequest(http.MethodGet, "/", nil)))
}
