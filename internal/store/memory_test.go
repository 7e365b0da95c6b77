package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bhargav65/Silent-Byte/internal/model"
)

// TestMemoryStoreSemantics pins the contract the registry relies on:
// upsert replaces by code, delete is tolerant of absent codes, and
// LoadAll returns everything still present.
func TestMemoryStoreSemantics(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, model.Room{
		Code:         "AB12C3",
		Participants: []model.Participant{{Handle: "h1", Role: model.RoleInitiator}},
	}))
	require.NoError(t, s.Upsert(ctx, model.Room{
		Code: "XY98Z7",
	}))

	// Replace by code, not append.
	require.NoError(t, s.Upsert(ctx, model.Room{
		Code: "AB12C3",
		Participants: []model.Participant{
			{Handle: "h1", Role: model.RoleInitiator},
			{Handle: "h2", Role: model.RoleResponder},
		},
	}))

	rooms, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	byCode := make(map[string]model.Room)
	for _, r := range rooms {
		byCode[r.Code] = r
	}
	assert.Len(t, byCode["AB12C3"].Participants, 2)

	require.NoError(t, s.Delete(ctx, "XY98Z7"))
	require.NoError(t, s.Delete(ctx, "XY98Z7")) // absent: still fine

	rooms, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}
