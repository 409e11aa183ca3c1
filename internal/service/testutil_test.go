package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/credence-ai/credence/internal/store"
	"github.com/google/uuid"
)

// memFactStore implements domain.FactStore over a map for testing.
type memFactStore struct {
	mu    sync.Mutex
	facts map[uuid.UUID]*domain.Fact

	createErr error
	markErr   error
}

func newMemFactStore() *memFactStore {
	return &memFactStore{facts: make(map[uuid.UUID]*domain.Fact)}
}

func copyFact(f *domain.Fact) *domain.Fact {
	c := *f
	if f.Supersedes != nil {
		v := *f.Supersedes
		c.Supersedes = &v
	}
	if f.SupersededBy != nil {
		v := *f.SupersededBy
		c.SupersededBy = &v
	}
	if f.ValidUntil != nil {
		v := *f.ValidUntil
		c.ValidUntil = &v
	}
	return &c
}

func (m *memFactStore) Create(ctx context.Context, f *domain.Fact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	f.ID = uuid.New()
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	if f.ValidFrom.IsZero() {
		f.ValidFrom = now
	}
	m.facts[f.ID] = copyFact(f)
	return nil
}

func (m *memFactStore) GetByID(ctx context.Context, space string, id uuid.UUID) (*domain.Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.facts[id]
	if !ok || f.MemorySpaceID != space {
		return nil, store.ErrNotFound
	}
	return copyFact(f), nil
}

func (m *memFactStore) Update(ctx context.Context, space string, id uuid.UUID, patch domain.FactPatch) (*domain.Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.facts[id]
	if !ok || f.MemorySpaceID != space {
		return nil, store.ErrNotFound
	}
	if patch.Statement != nil {
		f.Statement = *patch.Statement
	}
	if patch.Type != nil {
		f.Type = *patch.Type
	}
	if patch.Object != nil {
		f.Object = *patch.Object
	}
	if patch.Confidence != nil {
		f.Confidence = *patch.Confidence
	}
	if patch.SourceType != nil {
		f.SourceType = *patch.SourceType
	}
	if patch.Tags != nil {
		f.Tags = *patch.Tags
	}
	f.UpdatedAt = time.Now().UTC()
	return copyFact(f), nil
}

func matchesFilter(f *domain.Fact, filter domain.FactFilter) bool {
	if filter.Type != nil && f.Type != *filter.Type {
		return false
	}
	if filter.Subject != "" && f.Subject != filter.Subject {
		return false
	}
	if filter.MinConfidence > 0 && f.Confidence < filter.MinConfidence {
		return false
	}
	if !filter.IncludeSuperseded && !f.Live() {
		return false
	}
	for _, tag := range filter.Tags {
		found := false
		for _, t := range f.Tags {
			if t == tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *memFactStore) List(ctx context.Context, space string, filter domain.FactFilter) ([]domain.Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Fact
	for _, f := range m.facts {
		if f.MemorySpaceID == space && matchesFilter(f, filter) {
			out = append(out, *copyFact(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memFactStore) Count(ctx context.Context, space string, filter domain.FactFilter) (int, error) {
	facts, err := m.List(ctx, space, filter)
	return len(facts), err
}

func (m *memFactStore) Search(ctx context.Context, space string, query string, filter domain.FactFilter) ([]domain.Fact, error) {
	facts, err := m.List(ctx, space, filter)
	if err != nil {
		return nil, err
	}
	var out []domain.Fact
	for _, f := range facts {
		if strings.Contains(strings.ToLower(f.Statement), strings.ToLower(query)) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memFactStore) ListBySubject(ctx context.Context, space string, subject string) ([]domain.Fact, error) {
	return m.List(ctx, space, domain.FactFilter{Subject: subject})
}

func (m *memFactStore) ListBySlot(ctx context.Context, space string, subject string, predicate string) ([]domain.Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	norm := strings.ToLower(strings.TrimSpace(predicate))
	var out []domain.Fact
	for _, f := range m.facts {
		if f.MemorySpaceID != space || !f.Live() {
			continue
		}
		if f.Subject != subject || f.Predicate == "" {
			continue
		}
		if strings.ToLower(strings.TrimSpace(f.Predicate)) != norm {
			continue
		}
		out = append(out, *copyFact(f))
	}
	return out, nil
}

func (m *memFactStore) ListLive(ctx context.Context, space string, limit int) ([]domain.Fact, error) {
	facts, err := m.List(ctx, space, domain.FactFilter{})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(facts) > limit {
		facts = facts[:limit]
	}
	return facts, nil
}

func (m *memFactStore) FindSimilar(ctx context.Context, space string, embedding []float32, threshold float64) ([]domain.FactWithScore, error) {
	return nil, nil
}

func (m *memFactStore) MarkSuperseded(ctx context.Context, space string, oldID uuid.UUID, newID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	f, ok := m.facts[oldID]
	if !ok || f.MemorySpaceID != space {
		return store.ErrNotFound
	}
	if f.SupersededBy != nil {
		return store.ErrSuperseded
	}
	f.SupersededBy = &newID
	t := at
	f.ValidUntil = &t
	f.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memFactStore) ClearSupersession(ctx context.Context, space string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.facts[id]
	if !ok || f.MemorySpaceID != space {
		return store.ErrNotFound
	}
	f.SupersededBy = nil
	f.ValidUntil = nil
	return nil
}

func (m *memFactStore) LinkSupersedes(ctx context.Context, space string, id uuid.UUID, predecessorID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.facts[id]
	if !ok || f.MemorySpaceID != space {
		return store.ErrNotFound
	}
	if predecessorID != nil {
		v := *predecessorID
		f.Supersedes = &v
	} else {
		f.Supersedes = nil
	}
	return nil
}

func (m *memFactStore) Delete(ctx context.Context, space string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.facts[id]
	if !ok || f.MemorySpaceID != space {
		return store.ErrNotFound
	}
	delete(m.facts, id)
	return nil
}

func (m *memFactStore) InvalidateSpace(ctx context.Context, space string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, f := range m.facts {
		if f.MemorySpaceID == space && f.ValidUntil == nil {
			t := at
			f.ValidUntil = &t
			n++
		}
	}
	return n, nil
}

// seed inserts a fact directly, bypassing Create side effects.
func (m *memFactStore) seed(f *domain.Fact) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if f.ValidFrom.IsZero() {
		f.ValidFrom = f.CreatedAt
	}
	m.facts[f.ID] = copyFact(f)
	return f.ID
}

func (m *memFactStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.facts)
}

// memRevisionLog implements domain.RevisionLogStore for testing.
type memRevisionLog struct {
	mu     sync.Mutex
	events []domain.RevisionEvent

	appendErr error
}

func newMemRevisionLog() *memRevisionLog {
	return &memRevisionLog{}
}

func (m *memRevisionLog) Append(ctx context.Context, e *domain.RevisionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	m.events = append(m.events, *e)
	return nil
}

func (m *memRevisionLog) ListByFactID(ctx context.Context, factID uuid.UUID) ([]domain.RevisionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RevisionEvent
	for _, e := range m.events {
		if e.FactID == factID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memRevisionLog) DeleteByFactID(ctx context.Context, factID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []domain.RevisionEvent
	for _, e := range m.events {
		if e.FactID != factID {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return nil
}

func (m *memRevisionLog) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// fixedScorer returns a constant score for any pair of statements.
type fixedScorer struct {
	score float64
}

func (s fixedScorer) Score(a, b string) float64 { return s.score }
