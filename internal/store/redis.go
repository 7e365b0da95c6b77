package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Bhargav65/Silent-Byte/internal/model"
)

// Rooms are short-lived; the TTL is a safety net against rows orphaned
// by an unclean shutdown.
const redisRoomTTL = 24 * time.Hour

// RedisStore keeps one JSON value per room under the "room:" prefix.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(code string) string {
	return fmt.Sprintf("room:%s", code)
}

func (s *RedisStore) LoadAll(ctx context.Context) ([]model.Room, error) {
	var rooms []model.Room

	iter := s.client.Scan(ctx, 0, s.key("*"), 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, err
		}

		var room model.Room
		if err := json.Unmarshal([]byte(data), &room); err != nil {
			return nil, fmt.Errorf("decode %s: %w", iter.Val(), err)
		}
		rooms = append(rooms, room)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return rooms, nil
}

func (s *RedisStore) Upsert(ctx context.Context, room model.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(room.Code), data, redisRoomTTL).Err()
}

func (s *RedisStore) Delete(ctx context.Context, code string) error {
	return s.client.Del(ctx, s.key(code)).Err()
}
