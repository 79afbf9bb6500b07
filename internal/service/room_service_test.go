package service

import (
	"context"
	"testing"

	"github.com/roomchat/chat-server/internal/models"
	"github.com/roomchat/chat-server/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoomFixture() (*RoomService, *MessageBuffer, *repo.MemoryStore) {
	store := repo.NewMemoryStore(0)
	buf := NewMessageBuffer(store, 10)
	return NewRoomService(store, store, buf), buf, store
}

func TestRoomService_CreateListGet(t *testing.T) {
	ctx := context.Background()
	svc, buf, _ := newRoomFixture()

	room, err := svc.Create(ctx, "  Everyone in CPEN322 ", "")
	require.NoError(t, err)
	assert.Equal(t, "Everyone in CPEN322", room.Name)

	// 作成と同時にバッファが用意される
	assert.True(t, buf.Append(room.ID, models.Message{Username: "alice", Text: "hi"}))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, room.ID, list[0].ID)
	assert.Equal(t, models.DefaultRoomImage, list[0].Image)
	assert.Equal(t, []models.Message{{Username: "alice", Text: "hi"}}, list[0].Messages)

	got, err := svc.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room, got)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomService_CreateRequiresName(t *testing.T) {
	svc, _, _ := newRoomFixture()

	_, err := svc.Create(context.Background(), "   ", "/assets/x.png")
	assert.ErrorIs(t, err, ErrRoomNameRequired)
	assert.True(t, IsValidationError(err))
}

func TestRoomService_PrimeBuffers(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryStore(0)
	for _, name := range []string{"a", "b"} {
		_, err := store.AddRoom(ctx, models.Room{Name: name})
		require.NoError(t, err)
	}
	buf := NewMessageBuffer(store, 10)
	svc := NewRoomService(store, store, buf)

	n, err := svc.PrimeBuffers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rooms, err := store.GetRooms(ctx)
	require.NoError(t, err)
	for _, r := range rooms {
		assert.True(t, buf.Append(r.ID, models.Message{Username: "x", Text: "y"}))
	}
}

func TestRoomService_AddConversation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRoomFixture()
	room, err := svc.Create(ctx, "room", "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		roomId  string
		ts      int64
		msgs    []models.Message
		wantErr error
	}{
		{name: "unknown room", roomId: "missing", ts: 100, msgs: []models.Message{}, wantErr: ErrRoomNotFound},
		{name: "missing messages", roomId: room.ID, ts: 100, msgs: nil, wantErr: ErrConversationInvalid},
		{name: "explicit timestamp", roomId: room.ID, ts: 100, msgs: []models.Message{{Username: "a", Text: "<b>"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, err := svc.AddConversation(ctx, tt.roomId, tt.ts, tt.msgs)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ts, conv.Timestamp)
			assert.Equal(t, "&lt;b&gt;", conv.Messages[0].Text)
			assert.Equal(t, room.ID, conv.Messages[0].RoomID)
		})
	}

	t.Run("default timestamp", func(t *testing.T) {
		before := models.NowMillis()
		conv, err := svc.AddConversation(ctx, room.ID, 0, []models.Message{})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, conv.Timestamp, before)
	})
}

func TestRoomService_LastConversation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRoomFixture()
	room, err := svc.Create(ctx, "room", "")
	require.NoError(t, err)

	_, ok, err := svc.LastConversation(ctx, room.ID, models.NowMillis())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.AddConversation(ctx, room.ID, 500, []models.Message{{Username: "a", Text: "old"}})
	require.NoError(t, err)
	_, err = svc.AddConversation(ctx, room.ID, 900, []models.Message{{Username: "a", Text: "new"}})
	require.NoError(t, err)

	conv, ok, err := svc.LastConversation(ctx, room.ID, 900)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "old", conv.Messages[0].Text)
}

func TestEscapeHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: `<script>alert("x")</script>`, want: "&lt;script&gt;alert(&quot;x&quot;)&lt;/script&gt;"},
		{in: "Tom & Jerry's", want: "Tom &amp; Jerry&#039;s"},
		{in: "&amp;", want: "&amp;amp;"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapeHTML(tt.in), tt.in)
	}
}
