package service

import (
	"context"
	"errors"
	"time"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/credence-ai/credence/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrFactNotFound    = errors.New("fact not found")
	ErrStatementEmpty  = errors.New("fact statement is required")
	ErrSpaceIDEmpty    = errors.New("memory_space_id is required")
	ErrConfidenceRange = errors.New("confidence must be between 0 and 100")
	ErrInvalidFactType = errors.New("invalid fact type")
	ErrEmptyPatch      = errors.New("patch contains no fields")
)

// FactService owns fact CRUD and queries. It sits outside the belief
// revision pipeline: Store creates facts without conflict checks, and
// Update mutates fields in place without writing revision history.
type FactService struct {
	facts           domain.FactStore
	embeddingClient domain.EmbeddingClient
	logger          *zap.Logger
}

func NewFactService(fs domain.FactStore, ec domain.EmbeddingClient, logger *zap.Logger) *FactService {
	return &FactService{
		facts:           fs,
		embeddingClient: ec,
		logger:          logger,
	}
}

func validateCandidate(f *domain.Fact) error {
	if f.MemorySpaceID == "" {
		return ErrSpaceIDEmpty
	}
	if f.Statement == "" {
		return ErrStatementEmpty
	}
	if !domain.ValidConfidence(f.Confidence) {
		return ErrConfidenceRange
	}
	if f.Type != "" && !domain.ValidFactType(string(f.Type)) {
		return ErrInvalidFactType
	}
	return nil
}

func (s *FactService) Store(ctx context.Context, f *domain.Fact) error {
	if err := validateCandidate(f); err != nil {
		return err
	}
	if f.Type == "" {
		f.Type = domain.FactTypeKnowledge
	}
	f.ValidFrom = time.Now().UTC()

	if s.embeddingClient != nil && len(f.Embedding) == 0 {
		emb, err := s.embeddingClient.Embed(ctx, f.Statement)
		if err != nil {
			s.logger.Warn("embedding generation failed", zap.Error(err))
			// Storage still works; semantic matching just won't see it.
		} else {
			f.Embedding = emb
		}
	}

	return s.facts.Create(ctx, f)
}

func (s *FactService) Get(ctx context.Context, memorySpaceID string, id uuid.UUID) (*domain.Fact, error) {
	f, err := s.facts.GetByID(ctx, memorySpaceID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrFactNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FactService) Update(ctx context.Context, memorySpaceID string, id uuid.UUID, patch domain.FactPatch) (*domain.Fact, error) {
	if patch.Empty() {
		return nil, ErrEmptyPatch
	}
	if patch.Statement != nil && *patch.Statement == "" {
		return nil, ErrStatementEmpty
	}
	if patch.Confidence != nil && !domain.ValidConfidence(*patch.Confidence) {
		return nil, ErrConfidenceRange
	}
	if patch.Type != nil && !domain.ValidFactType(string(*patch.Type)) {
		return nil, ErrInvalidFactType
	}

	f, err := s.facts.Update(ctx, memorySpaceID, id, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrFactNotFound
		}
		return nil, err
	}
	return f, nil
}

func validateFilter(filter domain.FactFilter) error {
	if filter.Type != nil && !domain.ValidFactType(string(*filter.Type)) {
		return ErrInvalidFactType
	}
	if filter.MinConfidence < domain.MinConfidence || filter.MinConfidence > domain.MaxConfidence {
		return ErrConfidenceRange
	}
	return nil
}

func (s *FactService) List(ctx context.Context, memorySpaceID string, filter domain.FactFilter) ([]domain.Fact, error) {
	if memorySpaceID == "" {
		return nil, ErrSpaceIDEmpty
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	return s.facts.List(ctx, memorySpaceID, filter)
}

func (s *FactService) Count(ctx context.Context, memorySpaceID string, filter domain.FactFilter) (int, error) {
	if memorySpaceID == "" {
		return 0, ErrSpaceIDEmpty
	}
	if err := validateFilter(filter); err != nil {
		return 0, err
	}
	return s.facts.Count(ctx, memorySpaceID, filter)
}

func (s *FactService) Search(ctx context.Context, memorySpaceID string, query string, filter domain.FactFilter) ([]domain.Fact, error) {
	if memorySpaceID == "" {
		return nil, ErrSpaceIDEmpty
	}
	if query == "" {
		return nil, errors.New("search query is required")
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	return s.facts.Search(ctx, memorySpaceID, query, filter)
}

func (s *FactService) QueryBySubject(ctx context.Context, memorySpaceID string, subject string) ([]domain.Fact, error) {
	if memorySpaceID == "" {
		return nil, ErrSpaceIDEmpty
	}
	if subject == "" {
		return nil, errors.New("subject is required")
	}
	return s.facts.ListBySubject(ctx, memorySpaceID, subject)
}

func (s *FactService) Export(ctx context.Context, memorySpaceID string, filter domain.FactFilter) (*domain.ExportResult, error) {
	if memorySpaceID == "" {
		return nil, ErrSpaceIDEmpty
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	// Exports include superseded facts so the audit trail travels with
	// the data.
	filter.IncludeSuperseded = true
	if filter.Limit <= 0 {
		filter.Limit = 10000
	}

	facts, err := s.facts.List(ctx, memorySpaceID, filter)
	if err != nil {
		return nil, err
	}
	return &domain.ExportResult{
		MemorySpaceID: memorySpaceID,
		Facts:         facts,
		Count:         len(facts),
		ExportedAt:    time.Now().UTC(),
	}, nil
}

// InvalidateSpace soft-invalidates every live fact in a space. Used by the
// external memory-deletion cascade; records stay readable for chain and
// history queries.
func (s *FactService) InvalidateSpace(ctx context.Context, memorySpaceID string) (int64, error) {
	if memorySpaceID == "" {
		return 0, ErrSpaceIDEmpty
	}
	return s.facts.InvalidateSpace(ctx, memorySpaceID, time.Now().UTC())
}
