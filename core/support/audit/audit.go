// Package audit defines the persistence contract for CS interaction records.
package audit

import (
	"context"
	"time"
)

// Interaction is one message crossing the user/operator boundary, or a
// lifecycle event of a handoff (request, accept, close, timeout).
type Interaction struct {
	ID         int64     `db:"id"`
	Type       string    `db:"interaction_type"`
	UserID     string    `db:"user_id"`
	CSID       string    `db:"cs_id"`
	Message    string    `db:"message"`
	OccurredAt time.Time `db:"occurred_at"`
}

// Recorder persists interactions. Recording is best-effort: the router logs
// and swallows failures so a storage outage never blocks message handling.
type Recorder interface {
	Record(ctx context.Context, it Interaction) error
}

// Reader retrieves persisted interactions for operator tooling.
type Reader interface {
	RecentByUser(ctx context.Context, userID string, limit int) ([]Interaction, error)
}
