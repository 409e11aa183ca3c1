package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/credence-ai/credence/internal/oracle"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured   = errors.New("belief revision is not configured: no oracle set")
	ErrResolver        = errors.New("oracle resolution failed")
	ErrResolverTimeout = errors.New("oracle resolution timed out")
)

// DefaultResolverTimeout bounds one oracle round trip.
const DefaultResolverTimeout = 15 * time.Second

// Resolver turns a conflict report into a concrete decision by consulting
// the configured oracle. It never falls back to ADD on oracle failure;
// masking a conflict is worse than surfacing the error.
type Resolver struct {
	oracle  domain.Oracle
	timeout time.Duration
	logger  *zap.Logger
}

func NewResolver(o domain.Oracle, timeout time.Duration, logger *zap.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultResolverTimeout
	}
	return &Resolver{oracle: o, timeout: timeout, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, candidate *domain.Fact, report *domain.ConflictReport) (*domain.Decision, error) {
	prompt, err := oracle.BuildDecisionPrompt(candidate, report)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolver, err)
	}

	octx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.oracle.Complete(octx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrResolverTimeout, r.timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrResolver, err)
	}

	decision, err := oracle.ParseDecision(raw)
	if err != nil {
		r.logger.Warn("oracle returned malformed decision",
			zap.String("response", truncate(raw, 500)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrResolver, err)
	}
	return decision, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
