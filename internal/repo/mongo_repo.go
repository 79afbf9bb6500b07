package repo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/roomchat/chat-server/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	roomsCollection         = "chatrooms"
	conversationsCollection = "conversations"
	usersCollection         = "users"

	mongoConnectTimeout = 10 * time.Second
)

// MongoStore はMongoDBをバックエンドとするStoreの実装です
// 接続はバックグラウンドで確立され、各操作は接続完了（ready）を待ってからクエリを発行します
type MongoStore struct {
	uri         string
	dbName      string
	mergeWindow time.Duration

	ready   chan struct{} // 接続処理の完了でcloseされる
	client  *mongo.Client
	db      *mongo.Database
	connErr error
}

// NewMongoStore は接続処理を開始したMongoStoreを返します
// mergeWindowが正の場合、AddConversationは直近の会話への追記を試みます
func NewMongoStore(uri, dbName string, mergeWindow time.Duration) *MongoStore {
	s := &MongoStore{
		uri:         uri,
		dbName:      dbName,
		mergeWindow: mergeWindow,
		ready:       make(chan struct{}),
	}
	go s.connect()
	return s
}

func (s *MongoStore) connect() {
	defer close(s.ready)

	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		s.connErr = err
		log.Printf("failed to connect to mongo (%s/%s): %v", s.uri, s.dbName, err)
		return
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		s.connErr = err
		log.Printf("failed to ping mongo (%s/%s): %v", s.uri, s.dbName, err)
		return
	}
	s.client = client
	s.db = client.Database(s.dbName)
	log.Printf("connected to mongo: %s/%s", s.uri, s.dbName)
}

// database は接続の完了を待ってデータベースハンドルを返します
func (s *MongoStore) database(ctx context.Context) (*mongo.Database, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.connErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreNotReady, s.connErr)
	}
	return s.db, nil
}

func (s *MongoStore) Status(ctx context.Context) StoreStatus {
	st := StoreStatus{Driver: "mongo", URL: s.uri, DB: s.dbName}
	if _, err := s.database(ctx); err != nil {
		st.Error = err.Error()
	}
	return st
}

func (s *MongoStore) Close(ctx context.Context) error {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// roomDoc はchatroomsコレクションのドキュメント
// _idはObjectIDと文字列のどちらも許容します
type roomDoc struct {
	ID    any    `bson:"_id,omitempty"`
	Name  string `bson:"name"`
	Image string `bson:"image,omitempty"`
}

func (d roomDoc) toModel() models.Room {
	return models.Room{ID: idString(d.ID), Name: d.Name, Image: d.Image}
}

type conversationDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	RoomID    string             `bson:"room_id"`
	Timestamp int64              `bson:"timestamp"`
	Messages  []models.Message   `bson:"messages"`
}

func (d conversationDoc) toModel() models.Conversation {
	msgs := d.Messages
	if msgs == nil {
		msgs = []models.Message{}
	}
	return models.Conversation{ID: d.ID.Hex(), RoomID: d.RoomID, Timestamp: d.Timestamp, Messages: msgs}
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

// roomIdFilter はObjectIDとしても文字列としても一致するフィルタを返します
func roomIdFilter(roomId string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(roomId); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, roomId}}}
	}
	return bson.M{"_id": roomId}
}

func (s *MongoStore) GetRooms(ctx context.Context) ([]models.Room, error) {
	db, err := s.database(ctx)
	if err != nil {
		return nil, err
	}
	cur, err := db.Collection(roomsCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var docs []roomDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	rooms := make([]models.Room, 0, len(docs))
	for _, d := range docs {
		rooms = append(rooms, d.toModel())
	}
	return rooms, nil
}

func (s *MongoStore) GetRoom(ctx context.Context, roomId string) (models.Room, bool, error) {
	db, err := s.database(ctx)
	if err != nil {
		return models.Room{}, false, err
	}
	var d roomDoc
	err = db.Collection(roomsCollection).FindOne(ctx, roomIdFilter(roomId)).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Room{}, false, nil
	}
	if err != nil {
		return models.Room{}, false, err
	}
	return d.toModel(), true, nil
}

func (s *MongoStore) AddRoom(ctx context.Context, room models.Room) (models.Room, error) {
	if err := validateRoom(room); err != nil {
		return models.Room{}, err
	}
	db, err := s.database(ctx)
	if err != nil {
		return models.Room{}, err
	}
	res, err := db.Collection(roomsCollection).InsertOne(ctx, roomDoc{Name: room.Name, Image: room.Image})
	if err != nil {
		return models.Room{}, err
	}
	room.ID = idString(res.InsertedID)
	return room, nil
}

func (s *MongoStore) GetLastConversation(ctx context.Context, roomId string, before int64) (models.Conversation, bool, error) {
	db, err := s.database(ctx)
	if err != nil {
		return models.Conversation{}, false, err
	}
	filter := bson.M{"room_id": roomId, "timestamp": bson.M{"$lt": before}}
	return findLatestConversation(ctx, db, filter)
}

func findLatestConversation(ctx context.Context, db *mongo.Database, filter bson.M) (models.Conversation, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	var d conversationDoc
	err := db.Collection(conversationsCollection).FindOne(ctx, filter, opts).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Conversation{}, false, nil
	}
	if err != nil {
		return models.Conversation{}, false, err
	}
	return d.toModel(), true, nil
}

func (s *MongoStore) AddConversation(ctx context.Context, conv models.Conversation) (models.Conversation, error) {
	if err := validateConversation(conv); err != nil {
		return models.Conversation{}, err
	}
	db, err := s.database(ctx)
	if err != nil {
		return models.Conversation{}, err
	}
	coll := db.Collection(conversationsCollection)

	if window := s.mergeWindow.Milliseconds(); window > 0 {
		last, ok, err := findLatestConversation(ctx, db, bson.M{"room_id": conv.RoomID})
		if err != nil {
			return models.Conversation{}, err
		}
		now := models.NowMillis()
		if ok && mergeable(last, now, window) {
			oid, err := primitive.ObjectIDFromHex(last.ID)
			if err != nil {
				return models.Conversation{}, err
			}
			update := bson.M{
				"$push": bson.M{"messages": bson.M{"$each": conv.Messages}},
				"$set":  bson.M{"timestamp": now},
			}
			if _, err := coll.UpdateByID(ctx, oid, update); err != nil {
				return models.Conversation{}, err
			}
			last.Messages = append(last.Messages, conv.Messages...)
			last.Timestamp = now
			return last, nil
		}
	}

	res, err := coll.InsertOne(ctx, conversationDoc{RoomID: conv.RoomID, Timestamp: conv.Timestamp, Messages: conv.Messages})
	if err != nil {
		return models.Conversation{}, err
	}
	conv.ID = idString(res.InsertedID)
	return conv, nil
}

func (s *MongoStore) GetUser(ctx context.Context, username string) (models.User, bool, error) {
	db, err := s.database(ctx)
	if err != nil {
		return models.User{}, false, err
	}
	// ユーザー名の大文字小文字は区別しない
	name := primitive.Regex{Pattern: "^" + regexp.QuoteMeta(username) + "$", Options: "i"}
	filter := bson.M{"$or": bson.A{bson.M{"username": name}, bson.M{"teamName": name}}}

	var u models.User
	err = db.Collection(usersCollection).FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, err
	}
	if u.Username == "" {
		u.Username = u.TeamName
	}
	return u, true, nil
}

// PutUser はユーザーを登録します（初期データ投入とテスト用）
func (s *MongoStore) PutUser(ctx context.Context, u models.User) error {
	db, err := s.database(ctx)
	if err != nil {
		return err
	}
	opts := options.Replace().SetUpsert(true)
	_, err = db.Collection(usersCollection).ReplaceOne(ctx, bson.M{"username": u.Username}, u, opts)
	return err
}
