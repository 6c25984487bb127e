package core

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dukepan/roomsync-backend/internal/apperr"
)

// SyncRecord is one round's event bucket plus the per-user phase map that
// makes the barrier work. Reports and actions are kept in separate maps
// deliberately: an earlier draft of this engine merged them into one map
// and silently dropped every action (see DESIGN.md).
type SyncRecord struct {
	ID uuid.UUID

	mu          sync.RWMutex
	reports     map[uuid.UUID]*Event
	reportOrder []uuid.UUID
	actions     map[uuid.UUID]*Event
	actionOrder []uuid.UUID
	phases      map[uuid.UUID]Phase
}

// NewSyncRecord creates an empty record with a fresh time-ordered id.
func NewSyncRecord() *SyncRecord {
	return &SyncRecord{
		ID:      uuid.Must(uuid.NewV7()),
		reports: make(map[uuid.UUID]*Event),
		actions: make(map[uuid.UUID]*Event),
		phases:  make(map[uuid.UUID]Phase),
	}
}

// AddEvents merges reports and actions contributed by from into this
// record and advances from's phase to WAITING. Fails if from has already
// submitted into this record, or if any event's From does not match from.
func (r *SyncRecord) AddEvents(from uuid.UUID, newReports, newActions []*Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phaseLocked(from) > PhaseCreated {
		return apperr.BadRequest("record already synced")
	}
	for _, ev := range newReports {
		if ev.From != from {
			return apperr.BadRequest("invalid report from")
		}
	}
	for _, ev := range newActions {
		if ev.From != from {
			return apperr.BadRequest("invalid action from")
		}
	}

	for _, ev := range newReports {
		if _, exists := r.reports[ev.ID]; !exists {
			r.reportOrder = append(r.reportOrder, ev.ID)
		}
		r.reports[ev.ID] = ev
	}
	for _, ev := range newActions {
		if _, exists := r.actions[ev.ID]; !exists {
			r.actionOrder = append(r.actionOrder, ev.ID)
		}
		r.actions[ev.ID] = ev
	}
	r.phases[from] = PhaseWaiting
	return nil
}

// GetPhase returns userID's phase in this record, inserting CREATED if
// userID has not yet been observed. A user that first appears mid-round
// this way counts as "not yet submitted" rather than missing.
func (r *SyncRecord) GetPhase(userID uuid.UUID) Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phaseLocked(userID)
}

// phaseLocked must be called with mu held for writing (it inserts on miss).
func (r *SyncRecord) phaseLocked(userID uuid.UUID) Phase {
	if p, ok := r.phases[userID]; ok {
		return p
	}
	r.phases[userID] = PhaseCreated
	return PhaseCreated
}

// AdvancePhase monotonically raises userID's phase to newPhase, reporting
// whether it strictly advanced.
func (r *SyncRecord) AdvancePhase(userID uuid.UUID, newPhase Phase) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if newPhase <= r.phaseLocked(userID) {
		return false
	}
	r.phases[userID] = newPhase
	return true
}

// GetMaxPhase returns the highest phase observed across every user in this
// record, or CREATED if no user has been observed yet.
func (r *SyncRecord) GetMaxPhase() Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	max := PhaseCreated
	for _, p := range r.phases {
		if p > max {
			max = p
		}
	}
	return max
}

// GetReports returns an ordered snapshot of the reports merged so far, in
// admission order.
func (r *SyncRecord) GetReports() []*Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Event, 0, len(r.reportOrder))
	for _, id := range r.reportOrder {
		out = append(out, r.reports[id])
	}
	return out
}

// GetActions returns an ordered snapshot of the actions merged so far, in
// admission order.
func (r *SyncRecord) GetActions() []*Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Event, 0, len(r.actionOrder))
	for _, id := range r.actionOrder {
		out = append(out, r.actions[id])
	}
	return out
}
