package similarity

import (
	"context"
	"math"

	"github.com/credence-ai/credence/internal/domain"
)

// EmbeddingScorer adapts an embedding client to pairwise statement scoring.
// Both statements are embedded and compared by cosine similarity, so it works
// with any vector dimension. Embedding failures score as zero.
type EmbeddingScorer struct {
	client domain.EmbeddingClient
}

func NewEmbeddingScorer(client domain.EmbeddingClient) *EmbeddingScorer {
	return &EmbeddingScorer{client: client}
}

func (s *EmbeddingScorer) Score(a, b string) float64 {
	ctx := context.Background()
	va, err := s.client.Embed(ctx, a)
	if err != nil {
		return 0
	}
	vb, err := s.client.Embed(ctx, b)
	if err != nil {
		return 0
	}
	return cosine(va, vb)
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
