package ingest

import "time"

// Entity carries the audit timestamps common to every persisted
// record in the system (jobs, subscriptions, dead letters, ...).
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity returns an Entity stamped with the current time for both
// CreatedAt and UpdatedAt.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch refreshes UpdatedAt to the current time.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}
