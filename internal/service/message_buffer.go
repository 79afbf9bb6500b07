package service

import (
	"context"
	"log"
	"sync"

	"github.com/roomchat/chat-server/internal/models"
	"github.com/roomchat/chat-server/internal/repo"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize は会話として保存するまでのメッセージ数
const DefaultBatchSize = 10

// MessageBuffer はリレーで受信したメッセージをルームごとにメモリ上へ蓄積し、
// batchSize件に達した時点で1つの会話として永続化します
//
// フラッシュは非同期に行われます。同じルームのバッチは切り出した順に
// 1つのワーカーが書き込み、タイムスタンプも切り出した時点で単調増加に割り当てます。
// 書き込みに失敗したバッチは破棄されます（再送はしません）
type MessageBuffer struct {
	repo      repo.ConversationRepo
	batchSize int

	mu     sync.Mutex
	rooms  map[string]*roomBuffer // ルームIDをキーとしたバッファ
	closed bool
	wg     sync.WaitGroup // 実行中のワーカー
}

type roomBuffer struct {
	messages []models.Message
	queue    []flushJob // 書き込み待ちのバッチ（FIFO）
	draining bool       // ワーカーが動いているか
	lastTS   int64      // 最後に割り当てたタイムスタンプ
}

// flushJob は1つの会話として保存するバッチ
type flushJob struct {
	timestamp int64
	messages  []models.Message
}

func NewMessageBuffer(r repo.ConversationRepo, batchSize int) *MessageBuffer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &MessageBuffer{repo: r, batchSize: batchSize, rooms: make(map[string]*roomBuffer)}
}

// BatchSize はフラッシュの閾値を返します
func (b *MessageBuffer) BatchSize() int { return b.batchSize }

// InitRoom はルームのバッファを用意します（既に存在する場合は何もしません）
func (b *MessageBuffer) InitRoom(roomId string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rooms[roomId]; !ok {
		b.rooms[roomId] = &roomBuffer{messages: make([]models.Message, 0, b.batchSize)}
	}
}

// Append はメッセージをルームのバッファに追加します
// 未知のルーム宛て、または停止後の場合はfalseを返します
func (b *MessageBuffer) Append(roomId string, msg models.Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	rb, ok := b.rooms[roomId]
	if !ok || b.closed {
		return false
	}
	rb.messages = append(rb.messages, msg)
	if len(rb.messages) < b.batchSize {
		return true
	}

	rb.queue = append(rb.queue, b.detach(rb))
	if !rb.draining {
		rb.draining = true
		b.wg.Add(1)
		go b.drain(roomId, rb)
	}
	return true
}

// detach はバッファの中身を切り出してタイムスタンプを割り当てます
// b.muを保持した状態で呼び出してください
func (b *MessageBuffer) detach(rb *roomBuffer) flushJob {
	ts := models.NowMillis()
	if ts <= rb.lastTS {
		ts = rb.lastTS + 1
	}
	rb.lastTS = ts

	job := flushJob{timestamp: ts, messages: rb.messages}
	rb.messages = make([]models.Message, 0, b.batchSize)
	return job
}

// drain はキューが空になるまでルームのバッチを順に書き込みます
func (b *MessageBuffer) drain(roomId string, rb *roomBuffer) {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		if len(rb.queue) == 0 {
			rb.draining = false
			b.mu.Unlock()
			return
		}
		job := rb.queue[0]
		rb.queue = rb.queue[1:]
		b.mu.Unlock()

		_ = b.persist(context.Background(), roomId, job)
	}
}

// Snapshot はルームのバッファのコピーを返します
func (b *MessageBuffer) Snapshot(roomId string) []models.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	rb, ok := b.rooms[roomId]
	if !ok {
		return []models.Message{}
	}
	out := make([]models.Message, len(rb.messages))
	copy(out, rb.messages)
	return out
}

// Wait は実行中のフラッシュがすべて終わるまで待ちます
func (b *MessageBuffer) Wait() {
	b.wg.Wait()
}

// FlushAll は以降の追加を止め、実行中のフラッシュを待った上で、
// 閾値に満たないバッファも会話として保存します（シャットダウン時に使用）
func (b *MessageBuffer) FlushAll(ctx context.Context) error {
	type pending struct {
		roomId string
		job    flushJob
	}

	b.mu.Lock()
	b.closed = true
	var rest []pending
	for id, rb := range b.rooms {
		if len(rb.messages) == 0 {
			continue
		}
		rest = append(rest, pending{roomId: id, job: b.detach(rb)})
	}
	b.mu.Unlock()

	// キュー済みのバッチを先に書き込ませ、ルーム内の順序を保つ
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range rest {
		p := p
		g.Go(func() error {
			return b.persist(gctx, p.roomId, p.job)
		})
	}
	return g.Wait()
}

func (b *MessageBuffer) persist(ctx context.Context, roomId string, job flushJob) error {
	conv := models.Conversation{RoomID: roomId, Timestamp: job.timestamp, Messages: job.messages}
	if _, err := b.repo.AddConversation(ctx, conv); err != nil {
		log.Printf("Failed to flush conversation: roomId=%s, messages=%d, error=%v", roomId, len(job.messages), err)
		return err
	}
	log.Printf("Conversation flushed: roomId=%s, messages=%d", roomId, len(job.messages))
	return nil
}
