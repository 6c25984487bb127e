package registry

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukepan/roomsync-backend/internal/apperr"
	"github.com/dukepan/roomsync-backend/internal/core"
)

// namePool hands out a *rand.Rand per acquisition so the hot name-generation
// path on RoomRegistry.Create never contends on a single shared RNG lock.
// Go has no true goroutine-local storage; this is the idiomatic substitute.
var namePool = sync.Pool{
	New: func() any {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	},
}

// RoomRegistry is the process-wide set of rooms, indexed by both id and
// human-facing six-digit name.
type RoomRegistry struct {
	mu    sync.RWMutex
	limit int
	byID  map[uuid.UUID]*core.Room
	byName map[string]uuid.UUID
}

// NewRoomRegistry constructs an empty registry bounded by limit.
func NewRoomRegistry(limit int) *RoomRegistry {
	return &RoomRegistry{
		limit:  limit,
		byID:   make(map[uuid.UUID]*core.Room),
		byName: make(map[string]uuid.UUID),
	}
}

// Create builds a new room, picking a fresh unused six-digit name via a
// rejection loop, and inserts it into both indexes atomically.
func (rr *RoomRegistry) Create(version string, owner *core.User, size int, lobbyLifetime, gameLifetime time.Duration) (*core.Room, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if len(rr.byID) >= rr.limit {
		return nil, apperr.Forbidden("room limit reached")
	}

	name, err := rr.freshName()
	if err != nil {
		return nil, err
	}

	room, err := core.NewRoom(version, owner, name, size, lobbyLifetime, gameLifetime)
	if err != nil {
		return nil, err
	}

	rr.byID[room.ID] = room
	rr.byName[room.Name] = room.ID
	return room, nil
}

// freshName draws six-digit decimal names until one is not already taken.
// It fails only when all 1,000,000 names are in use.
// Must be called with mu held for writing.
func (rr *RoomRegistry) freshName() (string, error) {
	if len(rr.byName) >= 1_000_000 {
		return "", apperr.Internal("could not allocate a room name")
	}

	rng := namePool.Get().(*rand.Rand)
	defer namePool.Put(rng)

	for {
		name := fmt.Sprintf("%06d", rng.Intn(1_000_000))
		if _, taken := rr.byName[name]; !taken {
			return name, nil
		}
	}
}

// GetByID returns a room by id.
func (rr *RoomRegistry) GetByID(id uuid.UUID) (*core.Room, error) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	room, ok := rr.byID[id]
	if !ok {
		return nil, apperr.NotFound("room not found")
	}
	return room, nil
}

// Get returns a room by its six-digit name.
func (rr *RoomRegistry) Get(name string) (*core.Room, error) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	id, ok := rr.byName[name]
	if !ok {
		return nil, apperr.NotFound("room not found")
	}
	room, ok := rr.byID[id]
	if !ok {
		return nil, apperr.NotFound("room not found")
	}
	return room, nil
}

// ExistsByID reports whether a room with id exists.
func (rr *RoomRegistry) ExistsByID(id uuid.UUID) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	_, ok := rr.byID[id]
	return ok
}

// ExistsByName reports whether a room with name exists.
func (rr *RoomRegistry) ExistsByName(name string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	_, ok := rr.byName[name]
	return ok
}

// Remove drops a room from both indexes.
func (rr *RoomRegistry) Remove(id uuid.UUID) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if room, ok := rr.byID[id]; ok {
		delete(rr.byName, room.Name)
		delete(rr.byID, id)
	}
}

// Count returns the current number of rooms.
func (rr *RoomRegistry) Count() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.byID)
}

// Limit returns the configured room limit.
func (rr *RoomRegistry) Limit() int {
	return rr.limit
}

// Clean snapshots the room set, then for each room either removes it (if no
// longer available) or sweeps its expired users and consumed sync records.
// The snapshot keeps per-room work outside the registry lock.
func (rr *RoomRegistry) Clean(userTimeout time.Duration) {
	rr.mu.RLock()
	snapshot := make([]*core.Room, 0, len(rr.byID))
	for _, room := range rr.byID {
		snapshot = append(snapshot, room)
	}
	rr.mu.RUnlock()

	for _, room := range snapshot {
		if !room.IsAvailable() {
			rr.Remove(room.ID)
			continue
		}
		room.KickExpired(userTimeout)
		room.CleanSyncRecords()
	}
}
