package embedding

import (
	"context"
	"hash/fnv"
)

const hashDimension = 64

// HashEmbedder is a deterministic, offline embedder. It produces stable
// vectors good enough for tests and local runs without an API key; it is
// not a semantic embedding.
type HashEmbedder struct {
	dimension int
}

func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{dimension: hashDimension}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dimension)
	if text == "" {
		return v, nil
	}

	h := fnv.New64a()
	for i, r := range text {
		h.Reset()
		_, _ = h.Write([]byte(string(r)))
		val := int64(h.Sum64())
		v[i%e.dimension] += float32(val%1000) / 1000.0
	}
	return v, nil
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}
