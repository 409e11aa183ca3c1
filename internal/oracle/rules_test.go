package oracle

import (
	"context"
	"testing"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rulesDecide(t *testing.T, candidate *domain.Fact, report *domain.ConflictReport) *domain.Decision {
	t.Helper()
	prompt, err := BuildDecisionPrompt(candidate, report)
	require.NoError(t, err)

	raw, err := NewRulesOracle().Complete(context.Background(), prompt)
	require.NoError(t, err)

	d, err := ParseDecision(raw)
	require.NoError(t, err)
	return d
}

func TestRulesOracleAddsWithoutConflicts(t *testing.T) {
	candidate := &domain.Fact{Statement: "user lives in Berlin", Subject: "user", Predicate: "lives in", Object: "Berlin", Confidence: 80}
	d := rulesDecide(t, candidate, &domain.ConflictReport{RecommendedAction: domain.ActionAdd})
	assert.Equal(t, domain.ActionAdd, d.Action)
}

func TestRulesOracleIgnoresDuplicateSlot(t *testing.T) {
	existing := uuid.New()
	candidate := &domain.Fact{Statement: "favorite color is blue", Subject: "u1", Predicate: "favorite color", Object: "blue", Confidence: 90}
	report := &domain.ConflictReport{
		HasConflicts: true,
		SlotConflicts: []domain.ConflictCandidate{
			{FactID: existing, MatchType: domain.MatchSlot, Object: "blue"},
		},
		RecommendedAction: domain.ActionIgnore,
	}
	d := rulesDecide(t, candidate, report)
	assert.Equal(t, domain.ActionIgnore, d.Action)
	require.NotNil(t, d.TargetFactID)
	assert.Equal(t, existing, *d.TargetFactID)
}

func TestRulesOracleIgnoresDuplicateSlotWithoutObjects(t *testing.T) {
	existing := uuid.New()
	candidate := &domain.Fact{Statement: "user works at Initech", Subject: "u1", Predicate: "employer", Confidence: 90}
	report := &domain.ConflictReport{
		HasConflicts: true,
		SlotConflicts: []domain.ConflictCandidate{
			{FactID: existing, MatchType: domain.MatchSlot, Statement: "user works at Initech"},
		},
		RecommendedAction: domain.ActionIgnore,
	}
	d := rulesDecide(t, candidate, report)
	assert.Equal(t, domain.ActionIgnore, d.Action)
	require.NotNil(t, d.TargetFactID)
	assert.Equal(t, existing, *d.TargetFactID)
}

func TestRulesOracleSupersedesContestedSlot(t *testing.T) {
	existing := uuid.New()
	candidate := &domain.Fact{Statement: "favorite color is purple", Subject: "u1", Predicate: "favorite color", Object: "purple", Confidence: 95}
	report := &domain.ConflictReport{
		HasConflicts: true,
		SlotConflicts: []domain.ConflictCandidate{
			{FactID: existing, MatchType: domain.MatchSlot, Object: "blue"},
		},
		RecommendedAction: domain.ActionSupersede,
	}
	d := rulesDecide(t, candidate, report)
	assert.Equal(t, domain.ActionSupersede, d.Action)
	require.NotNil(t, d.TargetFactID)
	assert.Equal(t, existing, *d.TargetFactID)
}

func TestRulesOracleMergesSemanticOverlap(t *testing.T) {
	existing := uuid.New()
	candidate := &domain.Fact{Statement: "user enjoys hiking on weekends", Subject: "user", Confidence: 75}
	report := &domain.ConflictReport{
		HasConflicts: true,
		SemanticConflicts: []domain.ConflictCandidate{
			{FactID: existing, MatchType: domain.MatchSemantic, Score: 0.91, Statement: "user likes weekend hikes"},
		},
		RecommendedAction: domain.ActionMerge,
	}
	d := rulesDecide(t, candidate, report)
	assert.Equal(t, domain.ActionMerge, d.Action)
	require.NotNil(t, d.MergedFact)
	assert.Equal(t, "user enjoys hiking on weekends", d.MergedFact.Statement)
	assert.Equal(t, 75, d.MergedFact.Confidence)
}

func TestRulesOracleRejectsForeignPrompt(t *testing.T) {
	_, err := NewRulesOracle().Complete(context.Background(), "what is the weather")
	assert.Error(t, err)
}
