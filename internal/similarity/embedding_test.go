package similarity

import (
	"context"
	"errors"
	"testing"

	"github.com/credence-ai/credence/internal/embedding"
	"github.com/stretchr/testify/assert"
)

type failingClient struct{}

func (failingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embed failed")
}

func TestEmbeddingScorerIdenticalStatements(t *testing.T) {
	s := NewEmbeddingScorer(embedding.NewHashEmbedder())
	score := s.Score("user prefers dark mode", "user prefers dark mode")
	assert.InDelta(t, 1.0, score, 0.001)
}

func TestEmbeddingScorerBounded(t *testing.T) {
	s := NewEmbeddingScorer(embedding.NewHashEmbedder())
	score := s.Score("user lives in Berlin", "deploys run on Fridays")
	assert.GreaterOrEqual(t, score, -1.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestEmbeddingScorerEmptyInput(t *testing.T) {
	s := NewEmbeddingScorer(embedding.NewHashEmbedder())
	assert.Equal(t, 0.0, s.Score("", "anything"))
}

func TestEmbeddingScorerEmbedFailure(t *testing.T) {
	s := NewEmbeddingScorer(failingClient{})
	assert.Equal(t, 0.0, s.Score("a", "b"))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2, 3}, []float32{1, 2, 3}), 0.001)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 0.001)
	assert.InDelta(t, -1.0, cosine([]float32{1, 0}, []float32{-1, 0}), 0.001)
	assert.Equal(t, 0.0, cosine([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Equal(t, 0.0, cosine(nil, nil))
}
