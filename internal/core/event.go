package core

import "github.com/google/uuid"

// Event is an immutable record of one player's contribution (a report or an
// action) within a round. Equality is by ID.
type Event struct {
	ID   uuid.UUID
	From uuid.UUID
	Type string
	Data any
}

// NewEvent constructs an Event. Construct-only: there are no setters.
func NewEvent(id, from uuid.UUID, typ string, data any) *Event {
	return &Event{ID: id, From: from, Type: typ, Data: data}
}
