package store

import (
	"context"
	"sync"

	"github.com/Bhargav65/Silent-Byte/internal/model"
)

// MemoryStore is a map-backed RoomStore. Used when no persistence
// backend is configured, and by tests.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]model.Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]model.Room),
	}
}

func (s *MemoryStore) LoadAll(_ context.Context) ([]model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make([]model.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (s *MemoryStore) Upsert(_ context.Context, room model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms[room.Code] = room
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, code)
	return nil
}
