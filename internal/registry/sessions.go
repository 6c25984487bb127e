package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dukepan/roomsync-backend/internal/apperr"
)

// Session is an opaque bearer token that authenticates a (room, user) pair
// for the lifetime of that membership.
type Session struct {
	ID     uuid.UUID
	RoomID uuid.UUID
	UserID uuid.UUID
}

// SessionRegistry maps session tokens to (room, user) pairs. A missing
// session is reported as unauthorized, not not-found: sessions are
// credentials, not resources.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewSessionRegistry constructs an empty session registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[uuid.UUID]*Session)}
}

// Create mints a fresh session for (roomID, userID).
func (sr *SessionRegistry) Create(roomID, userID uuid.UUID) *Session {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	s := &Session{ID: uuid.Must(uuid.NewV7()), RoomID: roomID, UserID: userID}
	sr.sessions[s.ID] = s
	return s
}

// Get returns the session for id, or unauthorized on miss.
func (sr *SessionRegistry) Get(id uuid.UUID) (*Session, error) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	s, ok := sr.sessions[id]
	if !ok {
		return nil, apperr.Unauthorized("unknown session")
	}
	return s, nil
}

// Exists reports whether a session with id is present.
func (sr *SessionRegistry) Exists(id uuid.UUID) bool {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	_, ok := sr.sessions[id]
	return ok
}

// Remove drops a session.
func (sr *SessionRegistry) Remove(id uuid.UUID) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	delete(sr.sessions, id)
}

// Count returns the current number of live sessions.
func (sr *SessionRegistry) Count() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.sessions)
}

// Clean removes every session for which isExpired returns true. The janitor
// applies the canonical predicate: room not present, or user not in that
// room, keeping session membership consistent with room membership.
// isExpired is evaluated against a snapshot taken outside sr.mu, since the
// janitor's predicate reaches into RoomRegistry/Room locks of its own and
// the session registry is meant to stay independent of room locking.
func (sr *SessionRegistry) Clean(isExpired func(*Session) bool) int {
	sr.mu.RLock()
	snapshot := make([]*Session, 0, len(sr.sessions))
	for _, s := range sr.sessions {
		snapshot = append(snapshot, s)
	}
	sr.mu.RUnlock()

	var expired []uuid.UUID
	for _, s := range snapshot {
		if isExpired(s) {
			expired = append(expired, s.ID)
		}
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()
	count := 0
	for _, id := range expired {
		if _, ok := sr.sessions[id]; ok {
			delete(sr.sessions, id)
			count++
		}
	}
	return count
}
