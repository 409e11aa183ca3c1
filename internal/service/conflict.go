package service

import (
	"context"
	"strings"
	"sync"

	"github.com/credence-ai/credence/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultSemanticThreshold is the minimum similarity score for a
	// semantic match, on a 0..1 scale.
	DefaultSemanticThreshold = 0.85
	// semanticScanLimit caps how many live facts the text scorer compares
	// against per check.
	semanticScanLimit = 500
)

// MatchConfig controls which conflict-detection strategies run.
type MatchConfig struct {
	SlotMatching      bool
	SemanticMatching  bool
	SemanticThreshold float64
}

func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		SlotMatching:      true,
		SemanticMatching:  false,
		SemanticThreshold: DefaultSemanticThreshold,
	}
}

// ConflictDetector finds existing facts a candidate collides with, via two
// independent strategies: slot matching (same subject+predicate) and
// semantic matching (statement similarity above a threshold).
type ConflictDetector struct {
	facts  domain.FactStore
	logger *zap.Logger

	// mu guards the matching configuration and backends; Configure on the
	// revision service may replace them while checks are in flight.
	mu              sync.RWMutex
	scorer          domain.SimilarityScorer
	embeddingClient domain.EmbeddingClient
	cfg             MatchConfig
}

func NewConflictDetector(fs domain.FactStore, logger *zap.Logger) *ConflictDetector {
	return &ConflictDetector{
		facts:  fs,
		cfg:    DefaultMatchConfig(),
		logger: logger,
	}
}

// SetScorer installs a text similarity scorer. Semantic matching stays off
// until explicitly enabled via SetConfig.
func (d *ConflictDetector) SetScorer(sc domain.SimilarityScorer) {
	d.mu.Lock()
	d.scorer = sc
	d.mu.Unlock()
}

// SetEmbeddingClient installs an embedding backend for similarity search.
// When set, semantic matching uses vector search instead of pairwise text
// scoring.
func (d *ConflictDetector) SetEmbeddingClient(ec domain.EmbeddingClient) {
	d.mu.Lock()
	d.embeddingClient = ec
	d.mu.Unlock()
}

func (d *ConflictDetector) SetConfig(cfg MatchConfig) {
	if cfg.SemanticThreshold <= 0 {
		cfg.SemanticThreshold = DefaultSemanticThreshold
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
}

func (d *ConflictDetector) Config() MatchConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// snapshot returns a consistent view of the configuration and backends for
// one check.
func (d *ConflictDetector) snapshot() (MatchConfig, domain.SimilarityScorer, domain.EmbeddingClient) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg, d.scorer, d.embeddingClient
}

// Check builds the conflict report for a candidate fact against the live
// corpus of a memory space.
func (d *ConflictDetector) Check(ctx context.Context, memorySpaceID string, candidate *domain.Fact) (*domain.ConflictReport, error) {
	cfg, scorer, ec := d.snapshot()

	report := &domain.ConflictReport{
		SlotConflicts:     []domain.ConflictCandidate{},
		SemanticConflicts: []domain.ConflictCandidate{},
	}

	if cfg.SlotMatching && candidate.HasSlot() {
		matches, err := d.facts.ListBySlot(ctx, memorySpaceID, candidate.Subject, candidate.Predicate)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			report.SlotConflicts = append(report.SlotConflicts, domain.ConflictCandidate{
				FactID:    m.ID,
				MatchType: domain.MatchSlot,
				Statement: m.Statement,
				Object:    m.Object,
			})
		}
	}

	if cfg.SemanticMatching {
		semantic, err := d.semanticMatches(ctx, memorySpaceID, candidate, cfg, scorer, ec)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(report.SlotConflicts))
		for _, c := range report.SlotConflicts {
			seen[c.FactID.String()] = true
		}
		for _, c := range semantic {
			if seen[c.FactID.String()] {
				continue
			}
			report.SemanticConflicts = append(report.SemanticConflicts, c)
		}
	}

	report.HasConflicts = len(report.SlotConflicts) > 0 || len(report.SemanticConflicts) > 0
	report.RecommendedAction = d.recommend(candidate, report)
	return report, nil
}

func (d *ConflictDetector) semanticMatches(ctx context.Context, memorySpaceID string, candidate *domain.Fact, cfg MatchConfig, scorer domain.SimilarityScorer, ec domain.EmbeddingClient) ([]domain.ConflictCandidate, error) {
	if ec != nil {
		return d.semanticByEmbedding(ctx, memorySpaceID, candidate, cfg, ec)
	}
	if scorer != nil {
		return d.semanticByScorer(ctx, memorySpaceID, candidate, cfg, scorer)
	}
	return nil, nil
}

func (d *ConflictDetector) semanticByEmbedding(ctx context.Context, memorySpaceID string, candidate *domain.Fact, cfg MatchConfig, ec domain.EmbeddingClient) ([]domain.ConflictCandidate, error) {
	emb := candidate.Embedding
	if len(emb) == 0 {
		var err error
		emb, err = ec.Embed(ctx, candidate.Statement)
		if err != nil {
			d.logger.Warn("candidate embedding failed, skipping semantic matching", zap.Error(err))
			return nil, nil
		}
	}

	matches, err := d.facts.FindSimilar(ctx, memorySpaceID, emb, cfg.SemanticThreshold)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ConflictCandidate, 0, len(matches))
	for _, m := range matches {
		out = append(out, domain.ConflictCandidate{
			FactID:    m.ID,
			MatchType: domain.MatchSemantic,
			Score:     m.Score,
			Statement: m.Statement,
			Object:    m.Object,
		})
	}
	return out, nil
}

func (d *ConflictDetector) semanticByScorer(ctx context.Context, memorySpaceID string, candidate *domain.Fact, cfg MatchConfig, scorer domain.SimilarityScorer) ([]domain.ConflictCandidate, error) {
	corpus, err := d.facts.ListLive(ctx, memorySpaceID, semanticScanLimit)
	if err != nil {
		return nil, err
	}
	var out []domain.ConflictCandidate
	for _, f := range corpus {
		score := scorer.Score(candidate.Statement, f.Statement)
		if score >= cfg.SemanticThreshold {
			out = append(out, domain.ConflictCandidate{
				FactID:    f.ID,
				MatchType: domain.MatchSemantic,
				Score:     score,
				Statement: f.Statement,
				Object:    f.Object,
			})
		}
	}
	return out, nil
}

// recommend is the heuristic used when no oracle is configured, and passed
// to the oracle as a hint otherwise.
func (d *ConflictDetector) recommend(candidate *domain.Fact, report *domain.ConflictReport) domain.RevisionAction {
	if !report.HasConflicts {
		return domain.ActionAdd
	}
	if len(report.SlotConflicts) > 0 {
		for _, c := range report.SlotConflicts {
			if sameSlotValue(c, candidate) {
				return domain.ActionIgnore
			}
		}
		return domain.ActionSupersede
	}
	// Semantic-only overlap: merging is the conservative suggestion.
	return domain.ActionMerge
}

// sameSlotValue reports whether an existing slot fact carries the same value
// as the candidate. When neither fact has an object, the statements decide.
func sameSlotValue(c domain.ConflictCandidate, candidate *domain.Fact) bool {
	a, b := strings.TrimSpace(c.Object), strings.TrimSpace(candidate.Object)
	if a == "" && b == "" {
		s := strings.TrimSpace(c.Statement)
		return s != "" && s == strings.TrimSpace(candidate.Statement)
	}
	return a != "" && a == b
}
