package core

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukepan/roomsync-backend/internal/apperr"
)

// NameMaxLength is the maximum byte length of a display name.
const NameMaxLength = 32

// User is a room's membership entry: a display name plus the bookkeeping
// the synchronization engine needs to compute catch-up slices and evict
// idle members. Mutation is guarded by the owning Room's lock, not a lock
// of its own.
type User struct {
	ID         uuid.UUID
	name       string
	lastSyncID uuid.UUID
	lastTime   time.Time
}

// NewUser constructs a User with a fresh time-ordered id, validating name.
func NewUser(name string) (*User, error) {
	u := &User{ID: uuid.Must(uuid.NewV7()), lastTime: time.Now()}
	if err := u.SetName(name); err != nil {
		return nil, err
	}
	return u, nil
}

// Name returns the user's display name.
func (u *User) Name() string { return u.name }

// SetName validates and sets the display name (1..=32 bytes).
func (u *User) SetName(newName string) error {
	if len(newName) == 0 || len(newName) > NameMaxLength {
		return apperr.BadRequest("invalid user name length")
	}
	u.name = newName
	return nil
}

// LastSyncID returns the id of the most recent record the user has
// acknowledged. Before their first sync it is whatever Room.Join or NewRoom
// set: uuid.Nil, or the room's last record for a user who joined after
// rounds had run.
func (u *User) LastSyncID() uuid.UUID { return u.lastSyncID }

// LastTime returns the timestamp of the user's last activity.
func (u *User) LastTime() time.Time { return u.lastTime }

// UpdateLast stamps both LastSyncID and LastTime (to now).
func (u *User) UpdateLast(newSyncID uuid.UUID) {
	u.lastSyncID = newSyncID
	u.lastTime = time.Now()
}
