package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/credence-ai/credence/internal/oracle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolveParsesDecision(t *testing.T) {
	mock := oracle.NewMockOracle(`{"action": "ADD", "reason": "no conflicts", "confidence": 99}`)
	r := NewResolver(mock, DefaultResolverTimeout, zap.NewNop())

	decision, err := r.Resolve(context.Background(), &domain.Fact{
		MemorySpaceID: "space-1",
		Statement:     "User prefers dark mode",
		Confidence:    80,
	}, &domain.ConflictReport{RecommendedAction: domain.ActionAdd})
	require.NoError(t, err)

	assert.Equal(t, domain.ActionAdd, decision.Action)
	assert.Equal(t, "no conflicts", decision.Reason)
	assert.Equal(t, 99, decision.Confidence)
	require.Len(t, mock.Calls, 1)
	assert.Contains(t, mock.Calls[0], "User prefers dark mode")
}

func TestResolveWrapsOracleError(t *testing.T) {
	mock := oracle.NewMockOracle("")
	mock.Err = errors.New("rate limited")
	r := NewResolver(mock, DefaultResolverTimeout, zap.NewNop())

	_, err := r.Resolve(context.Background(), &domain.Fact{Statement: "x"}, &domain.ConflictReport{})
	require.ErrorIs(t, err, ErrResolver)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestResolveRejectsMalformedResponse(t *testing.T) {
	r := NewResolver(oracle.NewMockOracle("definitely add this one"), DefaultResolverTimeout, zap.NewNop())

	_, err := r.Resolve(context.Background(), &domain.Fact{Statement: "x"}, &domain.ConflictReport{})
	require.ErrorIs(t, err, ErrResolver)
}

func TestResolveTimesOut(t *testing.T) {
	r := NewResolver(slowOracle{}, 10*time.Millisecond, zap.NewNop())

	_, err := r.Resolve(context.Background(), &domain.Fact{Statement: "x"}, &domain.ConflictReport{})
	require.ErrorIs(t, err, ErrResolverTimeout)
}

func TestNewResolverDefaultsTimeout(t *testing.T) {
	r := NewResolver(oracle.NewMockOracle("{}"), 0, zap.NewNop())
	assert.Equal(t, DefaultResolverTimeout, r.timeout)
}
