package store

import (
	"context"
	"fmt"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RevisionLogStore persists the append-only revision trail. Rows are never
// updated; DeleteByFactID exists only for compensating a failed apply.
type RevisionLogStore struct {
	db *pgxpool.Pool
}

func NewRevisionLogStore(db *pgxpool.Pool) *RevisionLogStore {
	return &RevisionLogStore{db: db}
}

func (s *RevisionLogStore) Append(ctx context.Context, e *domain.RevisionEvent) error {
	return withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`INSERT INTO revision_events (fact_id, action, superseded_by, reason, confidence)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at`,
			e.FactID, e.Action, e.SupersededBy, e.Reason, e.Confidence,
		).Scan(&e.ID, &e.CreatedAt)
	})
}

func (s *RevisionLogStore) ListByFactID(ctx context.Context, factID uuid.UUID) ([]domain.RevisionEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, fact_id, action, superseded_by, reason, confidence, created_at
		 FROM revision_events WHERE fact_id = $1
		 ORDER BY created_at ASC, id ASC`,
		factID,
	)
	if err != nil {
		return nil, fmt.Errorf("revision history query: %w", err)
	}
	defer rows.Close()

	var events []domain.RevisionEvent
	for rows.Next() {
		var e domain.RevisionEvent
		if err := rows.Scan(&e.ID, &e.FactID, &e.Action, &e.SupersededBy, &e.Reason, &e.Confidence, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revision event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *RevisionLogStore) DeleteByFactID(ctx context.Context, factID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM revision_events WHERE fact_id = $1`, factID)
	return err
}
