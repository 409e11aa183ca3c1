package embedding

import (
	"fmt"

	"github.com/credence-ai/credence/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

// NewClient creates an embedding client based on the provider name.
// Returns an error if the provider is unknown or the API key is empty
// (except for the local hash embedder).
func NewClient(provider, apiKey string) (domain.EmbeddingClient, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI embedding provider")
		}
		return NewOpenAIClient(apiKey), nil

	case ProviderHash:
		return NewHashEmbedder(), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: openai, hash)", provider)
	}
}
