package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by CREDENCE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("CREDENCE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

// OracleProvider returns the configured decision oracle provider.
// Defaults to "rules" if not set.
// Valid values: openai, anthropic, rules, mock
func OracleProvider() string {
	p := os.Getenv("ORACLE_PROVIDER")
	if p == "" {
		return "rules"
	}
	return p
}

// OracleAPIKey returns the API key for the configured oracle provider.
func OracleAPIKey() string {
	switch OracleProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "rules", "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "hash" if not set.
// Valid values: openai, hash
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "hash"
	}
	return p
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "hash":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// SemanticMatching returns whether semantic conflict detection runs in
// addition to slot matching. Defaults to false.
func SemanticMatching() bool {
	v, err := strconv.ParseBool(os.Getenv("SEMANTIC_MATCHING"))
	if err != nil {
		return false
	}
	return v
}

// SemanticThreshold returns the minimum similarity score for a semantic
// match. Defaults to 0.85 if not set or out of (0, 1].
func SemanticThreshold() float64 {
	v, err := strconv.ParseFloat(os.Getenv("SEMANTIC_THRESHOLD"), 64)
	if err != nil || v <= 0 || v > 1 {
		return 0.85
	}
	return v
}

// ResolverTimeout bounds one oracle round trip.
// Defaults to 15s if not set.
func ResolverTimeout() time.Duration {
	secs, err := strconv.Atoi(os.Getenv("RESOLVER_TIMEOUT_SECONDS"))
	if err != nil || secs <= 0 {
		return 15 * time.Second
	}
	return time.Duration(secs) * time.Second
}

// APIKey returns the static key requests must present, empty to disable
// authentication.
func APIKey() string {
	return os.Getenv("API_KEY")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
