package registry

import (
	"testing"

	"github.com/dukepan/roomsync-backend/internal/apperr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSessionRegistryCreateAndGet(t *testing.T) {
	sr := NewSessionRegistry()
	roomID, userID := uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())

	s := sr.Create(roomID, userID)
	require.Equal(t, roomID, s.RoomID)
	require.Equal(t, userID, s.UserID)

	got, err := sr.Get(s.ID)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestSessionRegistryGetMissIsUnauthorized(t *testing.T) {
	sr := NewSessionRegistry()
	_, err := sr.Get(uuid.Must(uuid.NewV7()))
	require.Error(t, err)
	require.Equal(t, apperr.KindUnauthorized, apperr.Of(err).Kind, "a missing session is a credential failure, not a 404")
}

func TestSessionRegistryRemove(t *testing.T) {
	sr := NewSessionRegistry()
	s := sr.Create(uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()))
	require.True(t, sr.Exists(s.ID))

	sr.Remove(s.ID)
	require.False(t, sr.Exists(s.ID))
	require.Equal(t, 0, sr.Count())
}

func TestSessionRegistryCleanAppliesPredicate(t *testing.T) {
	sr := NewSessionRegistry()
	keep := sr.Create(uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()))
	drop := sr.Create(uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()))

	n := sr.Clean(func(s *Session) bool { return s.ID == drop.ID })
	require.Equal(t, 1, n)
	require.True(t, sr.Exists(keep.ID))
	require.False(t, sr.Exists(drop.ID))
}
