package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type FactStore interface {
	Create(ctx context.Context, f *Fact) error
	GetByID(ctx context.Context, memorySpaceID string, id uuid.UUID) (*Fact, error)
	Update(ctx context.Context, memorySpaceID string, id uuid.UUID, patch FactPatch) (*Fact, error)
	List(ctx context.Context, memorySpaceID string, filter FactFilter) ([]Fact, error)
	Count(ctx context.Context, memorySpaceID string, filter FactFilter) (int, error)
	Search(ctx context.Context, memorySpaceID string, query string, filter FactFilter) ([]Fact, error)
	ListBySubject(ctx context.Context, memorySpaceID string, subject string) ([]Fact, error)
	// ListBySlot returns live facts whose subject matches exactly and whose
	// predicate matches case-insensitively after trimming.
	ListBySlot(ctx context.Context, memorySpaceID string, subject string, predicate string) ([]Fact, error)
	// ListLive returns live facts in a space, newest first.
	ListLive(ctx context.Context, memorySpaceID string, limit int) ([]Fact, error)
	FindSimilar(ctx context.Context, memorySpaceID string, embedding []float32, threshold float64) ([]FactWithScore, error)
	// MarkSuperseded links old -> new and closes the old fact's validity
	// window. Fails with ErrSuperseded if the old fact already has a
	// successor (check-and-set on superseded_by).
	MarkSuperseded(ctx context.Context, memorySpaceID string, oldID uuid.UUID, newID uuid.UUID, at time.Time) error
	// ClearSupersession reopens a fact; used only to compensate a partially
	// applied decision.
	ClearSupersession(ctx context.Context, memorySpaceID string, id uuid.UUID) error
	// LinkSupersedes sets (or, with nil, clears) a fact's back-pointer to
	// the fact it replaced.
	LinkSupersedes(ctx context.Context, memorySpaceID string, id uuid.UUID, predecessorID *uuid.UUID) error
	// Delete removes a fact record; used only to compensate a partially
	// applied decision, never by the revision pipeline proper.
	Delete(ctx context.Context, memorySpaceID string, id uuid.UUID) error
	// InvalidateSpace soft-invalidates every live fact in a space so chains
	// stay intact for chain reads after an external cascade delete.
	InvalidateSpace(ctx context.Context, memorySpaceID string, at time.Time) (int64, error)
}

type RevisionLogStore interface {
	Append(ctx context.Context, e *RevisionEvent) error
	// ListByFactID returns events for a fact in chronological order.
	ListByFactID(ctx context.Context, factID uuid.UUID) ([]RevisionEvent, error)
	// DeleteByFactID removes events appended for a fact; used only to
	// compensate a partially applied decision.
	DeleteByFactID(ctx context.Context, factID uuid.UUID) error
}

// Oracle is the pluggable decision capability: one prompt in, structured
// text out. Real LLM clients and the deterministic rule engine both sit
// behind this interface.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SimilarityScorer scores two statements on a 0..1 scale.
type SimilarityScorer interface {
	Score(a, b string) float64
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Extractor is the external callback that turns raw conversational content
// into candidate facts. The engine awaits it once and feeds the candidates
// through the revision pipeline; it never extracts facts itself.
type Extractor interface {
	Extract(ctx context.Context, memorySpaceID string, content string) ([]Fact, error)
}
