package core

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukepan/roomsync-backend/internal/apperr"
	"github.com/dukepan/roomsync-backend/internal/barrier"
)

const (
	// VersionMaxLength is the maximum byte length of a protocol version string.
	VersionMaxLength = 32
	// SizeMin and SizeMax bound a room's target player count.
	SizeMin = 2
	SizeMax = 4
)

// Room owns a room's membership and its ordered log of sync records, and
// implements the synchronization barrier described in the design.
type Room struct {
	ID      uuid.UUID
	Version string
	Name    string
	Size    int

	lobbyLifetime time.Duration
	gameLifetime  time.Duration

	mu         sync.RWMutex
	cond       *barrier.Cond
	userOrder  []uuid.UUID
	users      map[uuid.UUID]*User
	inLobby    bool
	info       any
	records    []*SyncRecord
	expireTime time.Time
}

// NewRoom constructs a room with owner as its sole initial member (and,
// per insertion order, its owner), plus the first empty SyncRecord.
func NewRoom(version string, owner *User, name string, size int, lobbyLifetime, gameLifetime time.Duration) (*Room, error) {
	if len(version) == 0 || len(version) > VersionMaxLength {
		return nil, apperr.BadRequest("invalid room version length")
	}
	if size < SizeMin || size > SizeMax {
		return nil, apperr.BadRequest("invalid room size")
	}

	owner.UpdateLast(uuid.Nil)

	r := &Room{
		ID:            uuid.Must(uuid.NewV7()),
		Version:       version,
		Name:          name,
		Size:          size,
		lobbyLifetime: lobbyLifetime,
		gameLifetime:  gameLifetime,
		cond:          barrier.New(),
		userOrder:     []uuid.UUID{owner.ID},
		users:         map[uuid.UUID]*User{owner.ID: owner},
		inLobby:       true,
		records:       []*SyncRecord{NewSyncRecord()},
		expireTime:    time.Now().Add(lobbyLifetime),
	}
	return r, nil
}

// Join admits user into the room, preserving insertion order. A joiner
// arriving before any round has actually run is bookmarked to uuid.Nil so
// their catch-up includes the inaugural round; otherwise they are
// bookmarked to the current last record and pick up from the round after it.
func (r *Room) Join(version string, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if version != r.Version {
		return apperr.BadRequest("room version mismatch")
	}
	if !r.inLobby {
		return apperr.Forbidden("game already started")
	}
	if len(r.users) >= r.Size {
		return apperr.Forbidden("room is full")
	}
	if _, exists := r.users[user.ID]; exists {
		return apperr.Forbidden("user already in the room")
	}

	if len(r.records) > 1 {
		user.UpdateLast(r.records[len(r.records)-1].ID)
	} else {
		user.UpdateLast(uuid.Nil)
	}
	r.users[user.ID] = user
	r.userOrder = append(r.userOrder, user.ID)
	return nil
}

// GetUser returns a member by id.
func (r *Room) GetUser(id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return u, nil
}

// HasUser reports membership.
func (r *Room) HasUser(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok
}

// KickExpired removes every member whose last activity exceeds timeout,
// returning the number removed.
func (r *Room) KickExpired(timeout time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	count := 0
	kept := r.userOrder[:0:0]
	for _, id := range r.userOrder {
		u := r.users[id]
		if now.Sub(u.LastTime()) > timeout {
			delete(r.users, id)
			count++
			continue
		}
		kept = append(kept, id)
	}
	r.userOrder = kept
	return count
}

// CountUsers returns the current member count.
func (r *Room) CountUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// UserIDs returns member ids in insertion order.
func (r *Room) UserIDs() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uuid.UUID, len(r.userOrder))
	copy(out, r.userOrder)
	return out
}

// Users returns members in insertion order (first = owner).
func (r *Room) Users() []*User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*User, 0, len(r.userOrder))
	for _, id := range r.userOrder {
		out = append(out, r.users[id])
	}
	return out
}

// Owner returns the first user inserted into the room.
func (r *Room) Owner() (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.userOrder) == 0 {
		return nil, apperr.NotFound("room is empty")
	}
	return r.users[r.userOrder[0]], nil
}

// IsInLobby reports whether the room is still in its lobby phase.
func (r *Room) IsInLobby() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inLobby
}

// StartGame transitions the room out of the lobby, requiring at least two
// members.
func (r *Room) StartGame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inLobby {
		return apperr.Forbidden("game already started")
	}
	if len(r.users) < 2 {
		return apperr.Forbidden("not enough players to start the game")
	}
	r.inLobby = false
	r.expireTime = time.Now().Add(r.gameLifetime)
	return nil
}

// IsAvailable reports whether the room has not expired and still has the
// minimum member count for its lifecycle stage.
func (r *Room) IsAvailable() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if time.Now().After(r.expireTime) {
		return false
	}
	if r.inLobby {
		return len(r.users) > 0
	}
	return len(r.users) > 1
}

// Info returns the owner-controlled room info blob.
func (r *Room) Info() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info
}

// UpdateInfo overwrites the room info blob. Callers are responsible for
// checking that the caller is the owner.
func (r *Room) UpdateInfo(newInfo any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info = newInfo
}

// SyncStats carries the barrier's per-call instrumentation signals back to
// the caller (internal/api), which feeds them to internal/telemetry. core
// stays free of any telemetry import; these are plain timings and a flag.
type SyncStats struct {
	WaitElapsed time.Duration
	SyncElapsed time.Duration
	RolledOver  bool
}

// Sync is the synchronization barrier: §4.4.1 steps A-H. It deposits the
// caller's reports/actions, waits out the slow-joiner and consensus
// windows, and returns the catch-up slice of records the caller has not
// yet acknowledged, plus this call's timing/outcome stats.
func (r *Room) Sync(userID uuid.UUID, reports, actions []*Event, waitTimeout, syncTimeout time.Duration) ([]*SyncRecord, SyncStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats SyncStats

	user, ok := r.users[userID]
	if !ok {
		return nil, stats, apperr.Forbidden("user not in the room")
	}

	record := r.records[len(r.records)-1]
	if record.GetPhase(userID) > PhaseCreated {
		return nil, stats, apperr.Forbidden("user already synced")
	}
	if record.GetMaxPhase() >= PhaseSynced {
		return nil, stats, apperr.Forbidden("room already synced")
	}

	// Step A: deposit.
	if err := record.AddEvents(userID, reports, actions); err != nil {
		return nil, stats, err
	}

	// Step B: slow-joiner wait. Only meaningful once the room has a history;
	// the extra guard present in some implementations ("last record's phase
	// for this user < SYNCED") is unreachable given step A's postcondition
	// and is dropped here.
	if record.GetMaxPhase() <= PhaseWaiting && len(r.records) > 1 {
		waitStart := time.Now()
		r.cond.WaitWhileFor(&r.mu, waitTimeout, func() bool {
			return !(record.GetMaxPhase() > PhaseWaiting)
		})
		stats.WaitElapsed = time.Since(waitStart)
	}

	// Step C: advance to SYNCING and broadcast.
	record.AdvancePhase(userID, PhaseSyncing)
	r.cond.NotifyAll()

	// Step D: consensus wait, bounded, for any member still untouched.
	stillCreated := false
	for _, id := range r.userOrder {
		if record.GetPhase(id) <= PhaseCreated {
			stillCreated = true
			break
		}
	}
	if stillCreated {
		syncStart := time.Now()
		r.cond.WaitWhileFor(&r.mu, syncTimeout, func() bool {
			return !(record.GetMaxPhase() > PhaseSyncing)
		})
		stats.SyncElapsed = time.Since(syncStart)
	}

	// Step E: finalize this caller.
	record.AdvancePhase(userID, PhaseSynced)
	r.cond.NotifyAll()

	// Step F: catch-up slice, in log order, strictly after the caller's
	// bookmark; also advances the caller's phase on every record returned.
	cursor := user.LastSyncID()
	var out []*SyncRecord
	for _, rec := range r.records {
		if uuidGreater(rec.ID, cursor) {
			out = append(out, rec)
			rec.AdvancePhase(userID, PhaseSynced)
		}
	}

	// Step G: round rollover, if no member is still mid-round on the record
	// this call targeted.
	rollover := true
	for _, id := range r.userOrder {
		p := record.GetPhase(id)
		if !(p <= PhaseCreated || p >= PhaseSynced) {
			rollover = false
			break
		}
	}
	if rollover {
		r.records = append(r.records, NewSyncRecord())
	}
	stats.RolledOver = rollover

	// Step H: update the caller's bookmark.
	user.UpdateLast(record.ID)

	return out, stats, nil
}

// CleanSyncRecords drops every record for which at least one current member
// has reached SYNCED. This is the weaker "any user" predicate the original
// implementation used, not the stricter "every current user" reading — see
// DESIGN.md.
func (r *Room) CleanSyncRecords() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	kept := r.records[:0:0]
	for _, rec := range r.records {
		drop := false
		for _, id := range r.userOrder {
			if rec.GetPhase(id) >= PhaseSynced {
				drop = true
				break
			}
		}
		if drop {
			count++
			continue
		}
		kept = append(kept, rec)
	}
	r.records = kept
	return count
}

// uuidGreater reports whether a sorts strictly after b in UUIDv7's
// chronological byte order; uuid.Nil sorts before every real id.
func uuidGreater(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) > 0
}
