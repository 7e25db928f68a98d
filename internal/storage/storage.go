package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"devconnect/backend/internal/models"
)

// Storage is the relay's presence and fan-out backend. The hub treats it as
// optional: without one it runs single-node with in-process fan-out only.
type Storage interface {
	AddRoomMember(roomID, userID string) error
	RemoveRoomMember(roomID, userID string) error
	GetRoomMembers(roomID string) ([]string, error)

	// PublishMessage broadcasts a room message to every relay node.
	PublishMessage(roomID string, msg models.UserMessagePayload) error
	// Subscribe delivers every published room message to handle until ctx
	// is cancelled.
	Subscribe(ctx context.Context, handle func(models.UserMessagePayload)) error
}

const broadcastChannel = "chat:broadcast"

// Service implements Storage on redis: room membership as sets, cross-node
// fan-out over a single pub/sub channel.
type Service struct {
	Redis *redis.Client
	Ctx   context.Context
}

func NewStorageService(rdb *redis.Client) *Service {
	return &Service{
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

func roomMembersKey(roomID string) string {
	return "room:members:" + roomID
}

func (s *Service) AddRoomMember(roomID, userID string) error {
	return s.Redis.SAdd(s.Ctx, roomMembersKey(roomID), userID).Err()
}

func (s *Service) RemoveRoomMember(roomID, userID string) error {
	return s.Redis.SRem(s.Ctx, roomMembersKey(roomID), userID).Err()
}

func (s *Service) GetRoomMembers(roomID string) ([]string, error) {
	return s.Redis.SMembers(s.Ctx, roomMembersKey(roomID)).Result()
}

func (s *Service) PublishMessage(roomID string, msg models.UserMessagePayload) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message for room %s: %w", roomID, err)
	}
	return s.Redis.Publish(s.Ctx, broadcastChannel, data).Err()
}

func (s *Service) Subscribe(ctx context.Context, handle func(models.UserMessagePayload)) error {
	pubsub := s.Redis.Subscribe(ctx, broadcastChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg models.UserMessagePayload
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				log.Printf("storage: unmarshalling pub/sub message: %v", err)
				continue
			}
			handle(msg)
		}
	}
}
