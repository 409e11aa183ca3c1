package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/credence-ai/credence/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSelfSupersession  = errors.New("a fact cannot supersede itself")
	ErrAlreadySuperseded = errors.New("fact is already superseded")
	ErrAlreadyLinked     = errors.New("new fact already supersedes another fact")
	ErrDecisionTarget    = errors.New("decision references a missing target fact")
)

// RevisionConfig carries the recognized belief-revision options. Nil bool
// fields fall back to their defaults (slot matching on, semantic matching
// off).
type RevisionConfig struct {
	SlotMatching      *bool
	SemanticMatching  *bool
	SemanticThreshold float64
	ResolverTimeout   time.Duration
}

// RevisionService runs the belief-revision pipeline: conflict detection,
// oracle arbitration, and atomic application of the decision. Each service
// instance owns its own configuration; there is no process-global state.
type RevisionService struct {
	facts    domain.FactStore
	log      domain.RevisionLogStore
	detector *ConflictDetector
	logger   *zap.Logger
	locks    *keyedLocks

	mu       sync.RWMutex
	resolver *Resolver
}

func NewRevisionService(fs domain.FactStore, log domain.RevisionLogStore, detector *ConflictDetector, logger *zap.Logger) *RevisionService {
	return &RevisionService{
		facts:    fs,
		log:      log,
		detector: detector,
		logger:   logger,
		locks:    newKeyedLocks(),
	}
}

// Configure sets the decision oracle and matching options for this service
// instance. Calling it again replaces the previous configuration.
func (s *RevisionService) Configure(o domain.Oracle, cfg *RevisionConfig) {
	mc := DefaultMatchConfig()
	timeout := DefaultResolverTimeout
	if cfg != nil {
		if cfg.SlotMatching != nil {
			mc.SlotMatching = *cfg.SlotMatching
		}
		if cfg.SemanticMatching != nil {
			mc.SemanticMatching = *cfg.SemanticMatching
		}
		if cfg.SemanticThreshold > 0 {
			mc.SemanticThreshold = cfg.SemanticThreshold
		}
		if cfg.ResolverTimeout > 0 {
			timeout = cfg.ResolverTimeout
		}
	}
	s.detector.SetConfig(mc)

	s.mu.Lock()
	s.resolver = NewResolver(o, timeout, s.logger)
	s.mu.Unlock()
}

func (s *RevisionService) currentResolver() *Resolver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolver
}

// CheckConflicts reports how a candidate fact collides with the existing
// corpus. Works without an oracle; the recommendation is heuristic.
func (s *RevisionService) CheckConflicts(ctx context.Context, candidate *domain.Fact) (*domain.ConflictReport, error) {
	if err := validateCandidate(candidate); err != nil {
		return nil, err
	}
	return s.detector.Check(ctx, candidate.MemorySpaceID, candidate)
}

// Revise runs the full pipeline for one candidate fact. Requires a prior
// Configure call; fails with ErrNotConfigured before any matching work.
func (s *RevisionService) Revise(ctx context.Context, candidate *domain.Fact) (*domain.ExecutionResult, error) {
	resolver := s.currentResolver()
	if resolver == nil {
		return nil, ErrNotConfigured
	}
	if err := validateCandidate(candidate); err != nil {
		return nil, err
	}

	// Serialize against other revisions of the same slot so no two
	// concurrently decided candidates both end up live.
	release := s.locks.acquire(slotKey(candidate.MemorySpaceID, candidate.Subject, candidate.Predicate))
	defer release()

	report, err := s.detector.Check(ctx, candidate.MemorySpaceID, candidate)
	if err != nil {
		return nil, err
	}

	decision, err := resolver.Resolve(ctx, candidate, report)
	if err != nil {
		return nil, err
	}

	return s.apply(ctx, candidate, decision)
}

// apply executes a decision against the store as one unit. If a sub-write
// fails, the writes already applied in this call are compensated before the
// error is surfaced.
func (s *RevisionService) apply(ctx context.Context, candidate *domain.Fact, decision *domain.Decision) (*domain.ExecutionResult, error) {
	if !domain.ValidConfidence(decision.Confidence) {
		return nil, ErrConfidenceRange
	}

	switch decision.Action {
	case domain.ActionAdd:
		return s.applyAdd(ctx, candidate, decision)
	case domain.ActionSupersede:
		return s.applySupersede(ctx, candidate, decision)
	case domain.ActionMerge:
		return s.applyMerge(ctx, candidate, decision)
	case domain.ActionIgnore:
		return s.applyIgnore(ctx, decision)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrResolver, decision.Action)
	}
}

func (s *RevisionService) applyAdd(ctx context.Context, candidate *domain.Fact, decision *domain.Decision) (*domain.ExecutionResult, error) {
	f := newFactFromCandidate(candidate)
	if err := s.facts.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("persist new fact: %w", err)
	}

	comp := newCompensator(s.logger)
	comp.add("delete new fact", func(ctx context.Context) error {
		return s.facts.Delete(ctx, f.MemorySpaceID, f.ID)
	})

	event := &domain.RevisionEvent{
		FactID:     f.ID,
		Action:     domain.ActionAdd,
		Reason:     decision.Reason,
		Confidence: decision.Confidence,
	}
	if err := s.log.Append(ctx, event); err != nil {
		return nil, comp.fail(ctx, fmt.Errorf("append ADD event: %w", err))
	}

	return &domain.ExecutionResult{
		Action:     domain.ActionAdd,
		Fact:       f,
		Reason:     decision.Reason,
		Confidence: decision.Confidence,
	}, nil
}

func (s *RevisionService) applySupersede(ctx context.Context, candidate *domain.Fact, decision *domain.Decision) (*domain.ExecutionResult, error) {
	targetID := *decision.TargetFactID

	target, err := s.facts.GetByID(ctx, candidate.MemorySpaceID, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDecisionTarget, targetID)
		}
		return nil, err
	}
	if target.SupersededBy != nil {
		return nil, ErrAlreadySuperseded
	}

	now := time.Now().UTC()
	f := newFactFromCandidate(candidate)
	f.Supersedes = &targetID
	if err := s.facts.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("persist superseding fact: %w", err)
	}

	comp := newCompensator(s.logger)
	comp.add("delete superseding fact", func(ctx context.Context) error {
		return s.facts.Delete(ctx, f.MemorySpaceID, f.ID)
	})

	if err := s.facts.MarkSuperseded(ctx, candidate.MemorySpaceID, targetID, f.ID, now); err != nil {
		if errors.Is(err, store.ErrSuperseded) {
			return nil, comp.fail(ctx, ErrAlreadySuperseded)
		}
		return nil, comp.fail(ctx, fmt.Errorf("mark target superseded: %w", err))
	}
	comp.add("reopen target fact", func(ctx context.Context) error {
		return s.facts.ClearSupersession(ctx, candidate.MemorySpaceID, targetID)
	})

	event := &domain.RevisionEvent{
		FactID:       targetID,
		Action:       domain.ActionSupersede,
		SupersededBy: &f.ID,
		Reason:       decision.Reason,
		Confidence:   decision.Confidence,
	}
	if err := s.log.Append(ctx, event); err != nil {
		return nil, comp.fail(ctx, fmt.Errorf("append SUPERSEDE event: %w", err))
	}

	return &domain.ExecutionResult{
		Action:         domain.ActionSupersede,
		Fact:           f,
		InvalidatedIDs: []uuid.UUID{targetID},
		Reason:         decision.Reason,
		Confidence:     decision.Confidence,
	}, nil
}

func (s *RevisionService) applyMerge(ctx context.Context, candidate *domain.Fact, decision *domain.Decision) (*domain.ExecutionResult, error) {
	targetID := *decision.TargetFactID

	target, err := s.facts.GetByID(ctx, candidate.MemorySpaceID, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDecisionTarget, targetID)
		}
		return nil, err
	}
	if target.SupersededBy != nil {
		return nil, ErrAlreadySuperseded
	}

	now := time.Now().UTC()
	comp := newCompensator(s.logger)

	// The candidate is persisted too, immediately invalidated, so the
	// audit trail shows both inputs of the merge.
	origin := newFactFromCandidate(candidate)
	if err := s.facts.Create(ctx, origin); err != nil {
		return nil, fmt.Errorf("persist merge input: %w", err)
	}
	comp.add("delete merge input", func(ctx context.Context) error {
		return s.facts.Delete(ctx, origin.MemorySpaceID, origin.ID)
	})

	merged := newFactFromMerge(candidate, decision.MergedFact)
	merged.Supersedes = &targetID
	if err := s.facts.Create(ctx, merged); err != nil {
		return nil, comp.fail(ctx, fmt.Errorf("persist merged fact: %w", err))
	}
	comp.add("delete merged fact", func(ctx context.Context) error {
		return s.facts.Delete(ctx, merged.MemorySpaceID, merged.ID)
	})

	for _, inputID := range []uuid.UUID{targetID, origin.ID} {
		inputID := inputID
		if err := s.facts.MarkSuperseded(ctx, candidate.MemorySpaceID, inputID, merged.ID, now); err != nil {
			if errors.Is(err, store.ErrSuperseded) {
				return nil, comp.fail(ctx, ErrAlreadySuperseded)
			}
			return nil, comp.fail(ctx, fmt.Errorf("mark merge input superseded: %w", err))
		}
		comp.add("reopen merge input", func(ctx context.Context) error {
			return s.facts.ClearSupersession(ctx, candidate.MemorySpaceID, inputID)
		})

		event := &domain.RevisionEvent{
			FactID:       inputID,
			Action:       domain.ActionMerge,
			SupersededBy: &merged.ID,
			Reason:       decision.Reason,
			Confidence:   decision.Confidence,
		}
		if err := s.log.Append(ctx, event); err != nil {
			return nil, comp.fail(ctx, fmt.Errorf("append MERGE event: %w", err))
		}
	}

	return &domain.ExecutionResult{
		Action:         domain.ActionMerge,
		Fact:           merged,
		InvalidatedIDs: []uuid.UUID{targetID, origin.ID},
		Reason:         decision.Reason,
		Confidence:     decision.Confidence,
	}, nil
}

func (s *RevisionService) applyIgnore(ctx context.Context, decision *domain.Decision) (*domain.ExecutionResult, error) {
	event := &domain.RevisionEvent{
		FactID:     *decision.TargetFactID,
		Action:     domain.ActionIgnore,
		Reason:     decision.Reason,
		Confidence: decision.Confidence,
	}
	if err := s.log.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("append IGNORE event: %w", err)
	}
	return &domain.ExecutionResult{
		Action:     domain.ActionIgnore,
		Reason:     decision.Reason,
		Confidence: decision.Confidence,
	}, nil
}

// Supersede manually replaces oldFactID with newFactID, outside the
// detection pipeline. Both facts must already exist.
func (s *RevisionService) Supersede(ctx context.Context, memorySpaceID string, oldFactID, newFactID uuid.UUID, reason string) error {
	if oldFactID == newFactID {
		return ErrSelfSupersession
	}

	release := s.locks.acquire(factKey(memorySpaceID, oldFactID.String()))
	defer release()

	old, err := s.facts.GetByID(ctx, memorySpaceID, oldFactID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrFactNotFound
		}
		return err
	}
	newFact, err := s.facts.GetByID(ctx, memorySpaceID, newFactID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrFactNotFound
		}
		return err
	}

	if old.SupersededBy != nil {
		return ErrAlreadySuperseded
	}
	if newFact.Supersedes != nil {
		return ErrAlreadyLinked
	}

	// Linking the tail of the new fact's ancestry to old would close a
	// loop if old already sits in that ancestry.
	ancestors, err := s.walkBack(ctx, memorySpaceID, old)
	if err != nil {
		return err
	}
	for _, a := range ancestors {
		if a.ID == newFactID {
			return ErrCycleDetected
		}
	}

	now := time.Now().UTC()
	comp := newCompensator(s.logger)

	if err := s.facts.MarkSuperseded(ctx, memorySpaceID, oldFactID, newFactID, now); err != nil {
		if errors.Is(err, store.ErrSuperseded) {
			return ErrAlreadySuperseded
		}
		return fmt.Errorf("mark superseded: %w", err)
	}
	comp.add("reopen old fact", func(ctx context.Context) error {
		return s.facts.ClearSupersession(ctx, memorySpaceID, oldFactID)
	})

	if err := s.facts.LinkSupersedes(ctx, memorySpaceID, newFactID, &oldFactID); err != nil {
		return comp.fail(ctx, fmt.Errorf("link supersedes: %w", err))
	}
	comp.add("unlink supersedes", func(ctx context.Context) error {
		return s.facts.LinkSupersedes(ctx, memorySpaceID, newFactID, nil)
	})

	event := &domain.RevisionEvent{
		FactID:       oldFactID,
		Action:       domain.ActionSupersede,
		SupersededBy: &newFactID,
		Reason:       reason,
		Confidence:   newFact.Confidence,
	}
	if err := s.log.Append(ctx, event); err != nil {
		return comp.fail(ctx, fmt.Errorf("append SUPERSEDE event: %w", err))
	}

	return nil
}

// History returns the revision events recorded for a fact, oldest first.
func (s *RevisionService) History(ctx context.Context, factID uuid.UUID) ([]domain.RevisionEvent, error) {
	return s.log.ListByFactID(ctx, factID)
}

// IngestResult reports what happened to one extracted candidate.
type IngestResult struct {
	Statement string                  `json:"statement"`
	Result    *domain.ExecutionResult `json:"result,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// IngestExtracted awaits the external extraction callback once and runs
// every returned candidate through the revision pipeline. Failed candidates
// are reported, not fatal.
func (s *RevisionService) IngestExtracted(ctx context.Context, extractor domain.Extractor, memorySpaceID string, content string) ([]IngestResult, error) {
	if extractor == nil {
		return nil, errors.New("extractor is not configured")
	}
	if s.currentResolver() == nil {
		return nil, ErrNotConfigured
	}

	candidates, err := extractor.Extract(ctx, memorySpaceID, content)
	if err != nil {
		return nil, fmt.Errorf("extraction callback: %w", err)
	}

	results := make([]IngestResult, 0, len(candidates))
	for i := range candidates {
		candidate := candidates[i]
		candidate.MemorySpaceID = memorySpaceID

		res, err := s.Revise(ctx, &candidate)
		out := IngestResult{Statement: candidate.Statement}
		if err != nil {
			s.logger.Warn("failed to revise extracted candidate",
				zap.String("statement", candidate.Statement),
				zap.Error(err))
			out.Error = err.Error()
		} else {
			out.Result = res
		}
		results = append(results, out)
	}
	return results, nil
}

func newFactFromCandidate(candidate *domain.Fact) *domain.Fact {
	f := &domain.Fact{
		MemorySpaceID: candidate.MemorySpaceID,
		Statement:     candidate.Statement,
		Type:          candidate.Type,
		Subject:       candidate.Subject,
		Predicate:     candidate.Predicate,
		Object:        candidate.Object,
		Confidence:    candidate.Confidence,
		SourceType:    candidate.SourceType,
		Tags:          candidate.Tags,
		Embedding:     candidate.Embedding,
		ValidFrom:     time.Now().UTC(),
	}
	if f.Type == "" {
		f.Type = domain.FactTypeKnowledge
	}
	return f
}

func newFactFromMerge(candidate *domain.Fact, m *domain.MergedFact) *domain.Fact {
	f := &domain.Fact{
		MemorySpaceID: candidate.MemorySpaceID,
		Statement:     m.Statement,
		Type:          m.Type,
		Subject:       m.Subject,
		Predicate:     m.Predicate,
		Object:        m.Object,
		Confidence:    m.Confidence,
		SourceType:    candidate.SourceType,
		Tags:          m.Tags,
		ValidFrom:     time.Now().UTC(),
	}
	if f.Type == "" {
		f.Type = candidate.Type
	}
	if f.Type == "" {
		f.Type = domain.FactTypeKnowledge
	}
	if f.Subject == "" {
		f.Subject = candidate.Subject
	}
	if f.Predicate == "" {
		f.Predicate = candidate.Predicate
	}
	return f
}
