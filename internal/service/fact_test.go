package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// failingEmbedder always errors, to exercise the degraded-storage path.
type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding backend down")
}

// stubEmbedder returns a fixed vector.
type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestStoreFact(t *testing.T) {
	fs := newMemFactStore()
	svc := NewFactService(fs, nil, zap.NewNop())

	f := &domain.Fact{
		MemorySpaceID: "space-1",
		Statement:     "User's favorite color is blue",
		Subject:       "user-1",
		Predicate:     "favorite_color",
		Object:        "blue",
		Confidence:    85,
	}
	require.NoError(t, svc.Store(context.Background(), f))

	assert.NotEqual(t, uuid.Nil, f.ID)
	assert.Equal(t, domain.FactTypeKnowledge, f.Type)
	assert.False(t, f.ValidFrom.IsZero())
	assert.True(t, f.Live())
}

func TestStoreFactValidation(t *testing.T) {
	svc := NewFactService(newMemFactStore(), nil, zap.NewNop())

	cases := []struct {
		name    string
		fact    domain.Fact
		wantErr error
	}{
		{"missing space", domain.Fact{Statement: "x", Confidence: 50}, ErrSpaceIDEmpty},
		{"missing statement", domain.Fact{MemorySpaceID: "s", Confidence: 50}, ErrStatementEmpty},
		{"confidence out of range", domain.Fact{MemorySpaceID: "s", Statement: "x", Confidence: 150}, ErrConfidenceRange},
		{"invalid type", domain.Fact{MemorySpaceID: "s", Statement: "x", Confidence: 50, Type: "hunch"}, ErrInvalidFactType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Store(context.Background(), &tc.fact)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestStoreFactGeneratesEmbedding(t *testing.T) {
	fs := newMemFactStore()
	svc := NewFactService(fs, stubEmbedder{}, zap.NewNop())

	f := &domain.Fact{MemorySpaceID: "space-1", Statement: "x", Confidence: 50}
	require.NoError(t, svc.Store(context.Background(), f))
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, f.Embedding)
}

func TestStoreFactSurvivesEmbeddingFailure(t *testing.T) {
	fs := newMemFactStore()
	svc := NewFactService(fs, failingEmbedder{}, zap.NewNop())

	f := &domain.Fact{MemorySpaceID: "space-1", Statement: "x", Confidence: 50}
	require.NoError(t, svc.Store(context.Background(), f))
	assert.Empty(t, f.Embedding)
	assert.Equal(t, 1, fs.len())
}

func TestGetFactNotFound(t *testing.T) {
	svc := NewFactService(newMemFactStore(), nil, zap.NewNop())

	_, err := svc.Get(context.Background(), "space-1", uuid.New())
	require.ErrorIs(t, err, ErrFactNotFound)
}

func TestGetFactWrongSpace(t *testing.T) {
	fs := newMemFactStore()
	id := fs.seed(&domain.Fact{MemorySpaceID: "space-1", Statement: "x", Confidence: 50})
	svc := NewFactService(fs, nil, zap.NewNop())

	_, err := svc.Get(context.Background(), "space-2", id)
	require.ErrorIs(t, err, ErrFactNotFound)
}

func TestUpdateFact(t *testing.T) {
	fs := newMemFactStore()
	id := fs.seed(&domain.Fact{
		MemorySpaceID: "space-1",
		Statement:     "User lives in Paris",
		Confidence:    70,
	})
	svc := NewFactService(fs, nil, zap.NewNop())

	stmt := "User lives in Lyon"
	conf := 90
	updated, err := svc.Update(context.Background(), "space-1", id, domain.FactPatch{
		Statement:  &stmt,
		Confidence: &conf,
	})
	require.NoError(t, err)

	assert.Equal(t, "User lives in Lyon", updated.Statement)
	assert.Equal(t, 90, updated.Confidence)
}

func TestUpdateFactValidation(t *testing.T) {
	fs := newMemFactStore()
	id := fs.seed(&domain.Fact{MemorySpaceID: "space-1", Statement: "x", Confidence: 50})
	svc := NewFactService(fs, nil, zap.NewNop())

	_, err := svc.Update(context.Background(), "space-1", id, domain.FactPatch{})
	require.ErrorIs(t, err, ErrEmptyPatch)

	empty := ""
	_, err = svc.Update(context.Background(), "space-1", id, domain.FactPatch{Statement: &empty})
	require.ErrorIs(t, err, ErrStatementEmpty)

	bad := 101
	_, err = svc.Update(context.Background(), "space-1", id, domain.FactPatch{Confidence: &bad})
	require.ErrorIs(t, err, ErrConfidenceRange)
}

func TestSequentialUpdatesLeaveNoHistory(t *testing.T) {
	fs := newMemFactStore()
	log := newMemRevisionLog()
	id := fs.seed(&domain.Fact{
		MemorySpaceID: "space-1",
		Statement:     "Counter is at 0",
		Confidence:    50,
	})
	svc := NewFactService(fs, nil, zap.NewNop())

	// In-place updates mutate, they never version.
	for i := 1; i <= 10; i++ {
		stmt := fmt.Sprintf("Counter is at %d", i)
		_, err := svc.Update(context.Background(), "space-1", id, domain.FactPatch{Statement: &stmt})
		require.NoError(t, err)
	}

	f, err := svc.Get(context.Background(), "space-1", id)
	require.NoError(t, err)
	assert.Equal(t, "Counter is at 10", f.Statement)
	assert.True(t, f.Live())

	assert.Equal(t, 1, fs.len())
	assert.Equal(t, 0, log.count())
}

func TestListFactsFiltered(t *testing.T) {
	fs := newMemFactStore()
	fs.seed(&domain.Fact{MemorySpaceID: "space-1", Statement: "a", Type: domain.FactTypePreference, Confidence: 90, Tags: []string{"food"}})
	fs.seed(&domain.Fact{MemorySpaceID: "space-1", Statement: "b", Type: domain.FactTypeIdentity, Confidence: 40})
	fs.seed(&domain.Fact{MemorySpaceID: "space-2", Statement: "c", Type: domain.FactTypePreference, Confidence: 90})
	svc := NewFactService(fs, nil, zap.NewNop())

	pref := domain.FactTypePreference
	facts, err := svc.List(context.Background(), "space-1", domain.FactFilter{Type: &pref})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "a", facts[0].Statement)

	facts, err = svc.List(context.Background(), "space-1", domain.FactFilter{MinConfidence: 50})
	require.NoError(t, err)
	require.Len(t, facts, 1)

	facts, err = svc.List(context.Background(), "space-1", domain.FactFilter{Tags: []string{"food"}})
	require.NoError(t, err)
	require.Len(t, facts, 1)

	count, err := svc.Count(context.Background(), "space-1", domain.FactFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestListExcludesSupersededByDefault(t *testing.T) {
	fs := newMemFactStore()
	succ := uuid.New()
	fs.seed(&domain.Fact{MemorySpaceID: "space-1", Statement: "old", Confidence: 50, SupersededBy: &succ})
	fs.seed(&domain.Fact{MemorySpaceID: "space-1", Statement: "current", Confidence: 50})
	svc := NewFactService(fs, nil, zap.NewNop())

	facts, err := svc.List(context.Background(), "space-1", domain.FactFilter{})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "current", facts[0].Statement)

	facts, err = svc.List(context.Background(), "space-1", domain.FactFilter{IncludeSuperseded: true})
	require.NoError(t, err)
	assert.Len(t, facts, 2)
}

func TestSearchFacts(t *testing.T) {
	fs := newMemFactStore()
	fs.seed(&domain.Fact{MemorySpaceID: "space-1", Statement: "User loves espresso", Confidence: 80})
	fs.seed(&domain.Fact{MemorySpaceID: "space-1", Statement: "User dislikes tea", Confidence: 80})
	svc := NewFactService(fs, nil, zap.NewNop())

	facts, err := svc.Search(context.Background(), "space-1", "ESPRESSO", domain.FactFilter{})
	require.NoError(t, err)
	require.Len(t, facts, 1)

	_, err = svc.Search(context.Background(), "space-1", "", domain.FactFilter{})
	require.Error(t, err)
}

func TestExportIncludesSuperseded(t *testing.T) {
	fs := newMemFactStore()
	succ := uuid.New()
	fs.seed(&domain.Fact{MemorySpaceID: "space-1", Statement: "old", Confidence: 50, SupersededBy: &succ})
	fs.seed(&domain.Fact{MemorySpaceID: "space-1", Statement: "current", Confidence: 50})
	svc := NewFactService(fs, nil, zap.NewNop())

	result, err := svc.Export(context.Background(), "space-1", domain.FactFilter{})
	require.NoError(t, err)

	assert.Equal(t, "space-1", result.MemorySpaceID)
	assert.Equal(t, 2, result.Count)
	assert.Len(t, result.Facts, 2)
	assert.False(t, result.ExportedAt.IsZero())
}

func TestInvalidateSpace(t *testing.T) {
	fs := newMemFactStore()
	fs.seed(&domain.Fact{MemorySpaceID: "space-1", Statement: "a", Confidence: 50})
	fs.seed(&domain.Fact{MemorySpaceID: "space-1", Statement: "b", Confidence: 50})
	fs.seed(&domain.Fact{MemorySpaceID: "space-2", Statement: "c", Confidence: 50})
	svc := NewFactService(fs, nil, zap.NewNop())

	n, err := svc.InvalidateSpace(context.Background(), "space-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	facts, err := svc.List(context.Background(), "space-1", domain.FactFilter{})
	require.NoError(t, err)
	assert.Empty(t, facts)

	// The other space is untouched.
	facts, err = svc.List(context.Background(), "space-2", domain.FactFilter{})
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}
