package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/credence-ai/credence/internal/store"
	"github.com/google/uuid"
)

var (
	ErrCycleDetected = errors.New("cycle detected in supersession chain")
	ErrChainTooDeep  = errors.New("supersession chain exceeds maximum depth")
)

// MaxChainDepth bounds chain traversal in each direction. Supersession
// chains are written link-by-link and checked for cycles on write, so a
// deeper chain almost certainly means corrupted pointers.
const MaxChainDepth = 100

// GetSupersessionChain reconstructs the full chain a fact belongs to,
// ordered earliest to latest. Traversal keeps a visited set; a repeated id
// fails with ErrCycleDetected instead of looping.
func (s *RevisionService) GetSupersessionChain(ctx context.Context, memorySpaceID string, factID uuid.UUID) ([]domain.Fact, error) {
	f, err := s.facts.GetByID(ctx, memorySpaceID, factID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrFactNotFound
		}
		return nil, err
	}

	ancestors, err := s.walkBack(ctx, memorySpaceID, f)
	if err != nil {
		return nil, err
	}
	descendants, err := s.walkForward(ctx, memorySpaceID, f)
	if err != nil {
		return nil, err
	}

	chain := make([]domain.Fact, 0, len(ancestors)+1+len(descendants))
	for i := len(ancestors) - 1; i >= 0; i-- {
		chain = append(chain, ancestors[i])
	}
	chain = append(chain, *f)
	chain = append(chain, descendants...)
	return chain, nil
}

// walkBack follows supersedes pointers, nearest ancestor first.
func (s *RevisionService) walkBack(ctx context.Context, memorySpaceID string, f *domain.Fact) ([]domain.Fact, error) {
	visited := map[uuid.UUID]bool{f.ID: true}
	var out []domain.Fact

	cur := f
	for cur.Supersedes != nil {
		if len(out) >= MaxChainDepth {
			return nil, fmt.Errorf("%w (limit %d)", ErrChainTooDeep, MaxChainDepth)
		}
		next := *cur.Supersedes
		if visited[next] {
			return nil, fmt.Errorf("%w at fact %s", ErrCycleDetected, next)
		}
		visited[next] = true

		prev, err := s.facts.GetByID(ctx, memorySpaceID, next)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("chain points at missing fact %s: %w", next, ErrFactNotFound)
			}
			return nil, err
		}
		out = append(out, *prev)
		cur = prev
	}
	return out, nil
}

// walkForward follows supersededBy pointers, nearest descendant first.
func (s *RevisionService) walkForward(ctx context.Context, memorySpaceID string, f *domain.Fact) ([]domain.Fact, error) {
	visited := map[uuid.UUID]bool{f.ID: true}
	var out []domain.Fact

	cur := f
	for cur.SupersededBy != nil {
		if len(out) >= MaxChainDepth {
			return nil, fmt.Errorf("%w (limit %d)", ErrChainTooDeep, MaxChainDepth)
		}
		next := *cur.SupersededBy
		if visited[next] {
			return nil, fmt.Errorf("%w at fact %s", ErrCycleDetected, next)
		}
		visited[next] = true

		succ, err := s.facts.GetByID(ctx, memorySpaceID, next)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("chain points at missing fact %s: %w", next, ErrFactNotFound)
			}
			return nil, err
		}
		out = append(out, *succ)
		cur = succ
	}
	return out, nil
}
