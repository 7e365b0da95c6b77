package store

import (
	"context"

	"github.com/Bhargav65/Silent-Byte/internal/model"
)

// RoomStore persists room membership so sessions survive a process
// restart. The in-memory registry stays authoritative during process
// lifetime; callers log and swallow store errors.
type RoomStore interface {
	// LoadAll returns every persisted room. Called once at boot to warm
	// the registry.
	LoadAll(ctx context.Context) ([]model.Room, error)

	// Upsert creates or replaces the record for room.Code.
	Upsert(ctx context.Context, room model.Room) error

	// Delete removes the record for code. Deleting an absent code is not
	// an error.
	Delete(ctx context.Context, code string) error
}
