package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/csbot/core/support/audit"
)

// InteractionStore persists CS interactions to Postgres. It implements both
// audit.Recorder and audit.Reader.
type InteractionStore struct {
	db *sqlx.DB
}

// NewInteractionStore wraps an open connection pool.
func NewInteractionStore(db *sqlx.DB) *InteractionStore {
	return &InteractionStore{db: db}
}

// Record inserts one interaction row.
func (s *InteractionStore) Record(ctx context.Context, it audit.Interaction) error {
	const q = `
		INSERT INTO cs_interactions (interaction_type, user_id, cs_id, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.ExecContext(ctx, q, it.Type, it.UserID, it.CSID, it.Message, it.OccurredAt); err != nil {
		return fmt.Errorf("insert cs_interaction: %w", err)
	}
	return nil
}

// RecentByUser returns the newest interactions for a user, newest first.
func (s *InteractionStore) RecentByUser(ctx context.Context, userID string, limit int) ([]audit.Interaction, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
		SELECT id, interaction_type, user_id, cs_id, message, occurred_at
		FROM cs_interactions
		WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`
	var out []audit.Interaction
	if err := s.db.SelectContext(ctx, &out, q, userID, limit); err != nil {
		return nil, fmt.Errorf("select cs_interactions: %w", err)
	}
	return out, nil
}
