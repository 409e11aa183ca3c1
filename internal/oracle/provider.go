package oracle

import (
	"fmt"

	"github.com/credence-ai/credence/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderRules     = "rules"
	ProviderMock      = "mock"
)

// NewOracle creates a decision oracle based on the provider name.
// Returns an error if the provider is unknown or the API key is empty
// (except for rules and mock).
func NewOracle(provider, apiKey string) (domain.Oracle, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI oracle")
		}
		return NewOpenAIOracle(apiKey), nil

	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Anthropic oracle")
		}
		return NewAnthropicOracle(apiKey), nil

	case ProviderRules:
		return NewRulesOracle(), nil

	case ProviderMock:
		return NewMockOracle(""), nil

	default:
		return nil, fmt.Errorf("unknown oracle provider: %s (valid options: openai, anthropic, rules, mock)", provider)
	}
}
