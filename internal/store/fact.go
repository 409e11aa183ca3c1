package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

const factColumns = `id, memory_space_id, statement, fact_type, subject, predicate, object, confidence, source_type, tags, valid_from, valid_until, supersedes, superseded_by, created_at, updated_at`

type FactStore struct {
	db *pgxpool.Pool
}

func NewFactStore(db *pgxpool.Pool) *FactStore {
	return &FactStore{db: db}
}

func scanFact(row pgx.Row, f *domain.Fact) error {
	return row.Scan(
		&f.ID, &f.MemorySpaceID, &f.Statement, &f.Type, &f.Subject, &f.Predicate,
		&f.Object, &f.Confidence, &f.SourceType, &f.Tags, &f.ValidFrom, &f.ValidUntil,
		&f.Supersedes, &f.SupersededBy, &f.CreatedAt, &f.UpdatedAt,
	)
}

func (s *FactStore) Create(ctx context.Context, f *domain.Fact) error {
	var embedding *pgvector.Vector
	if len(f.Embedding) > 0 {
		v := pgvector.NewVector(f.Embedding)
		embedding = &v
	}

	if f.ValidFrom.IsZero() {
		f.ValidFrom = time.Now().UTC()
	}

	return withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`INSERT INTO facts (memory_space_id, statement, fact_type, subject, predicate, object, confidence, source_type, tags, embedding, valid_from, valid_until, supersedes, superseded_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			 RETURNING id, created_at, updated_at`,
			f.MemorySpaceID, f.Statement, f.Type, f.Subject, f.Predicate, f.Object,
			f.Confidence, f.SourceType, f.Tags, embedding, f.ValidFrom, f.ValidUntil,
			f.Supersedes, f.SupersededBy,
		).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	})
}

func (s *FactStore) GetByID(ctx context.Context, memorySpaceID string, id uuid.UUID) (*domain.Fact, error) {
	f := &domain.Fact{}
	err := scanFact(s.db.QueryRow(ctx,
		`SELECT `+factColumns+` FROM facts WHERE id = $1 AND memory_space_id = $2`,
		id, memorySpaceID,
	), f)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FactStore) Update(ctx context.Context, memorySpaceID string, id uuid.UUID, patch domain.FactPatch) (*domain.Fact, error) {
	var sets []string
	var args []any

	add := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)+1))
		args = append(args, val)
	}

	if patch.Statement != nil {
		add("statement", *patch.Statement)
	}
	if patch.Type != nil {
		add("fact_type", *patch.Type)
	}
	if patch.Object != nil {
		add("object", *patch.Object)
	}
	if patch.Confidence != nil {
		add("confidence", *patch.Confidence)
	}
	if patch.SourceType != nil {
		add("source_type", *patch.SourceType)
	}
	if patch.Tags != nil {
		add("tags", *patch.Tags)
	}
	if len(sets) == 0 {
		return s.GetByID(ctx, memorySpaceID, id)
	}

	sets = append(sets, "updated_at = NOW()")
	idParam := len(args) + 1
	args = append(args, id)
	spaceParam := len(args) + 1
	args = append(args, memorySpaceID)

	query := fmt.Sprintf(
		`UPDATE facts SET %s WHERE id = $%d AND memory_space_id = $%d RETURNING `+factColumns,
		strings.Join(sets, ", "), idParam, spaceParam,
	)

	f := &domain.Fact{}
	if err := scanFact(s.db.QueryRow(ctx, query, args...), f); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func filterConditions(filter domain.FactFilter, args *[]any) []string {
	var conditions []string

	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("fact_type = $%d", len(*args)+1))
		*args = append(*args, string(*filter.Type))
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(*args)+1))
		*args = append(*args, filter.Subject)
	}
	if len(filter.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("tags @> $%d", len(*args)+1))
		*args = append(*args, filter.Tags)
	}
	if filter.MinConfidence > 0 {
		conditions = append(conditions, fmt.Sprintf("confidence >= $%d", len(*args)+1))
		*args = append(*args, filter.MinConfidence)
	}
	if !filter.IncludeSuperseded {
		conditions = append(conditions, "superseded_by IS NULL AND valid_until IS NULL")
	}

	return conditions
}

func (s *FactStore) List(ctx context.Context, memorySpaceID string, filter domain.FactFilter) ([]domain.Fact, error) {
	var args []any
	conditions := []string{"memory_space_id = $1"}
	args = append(args, memorySpaceID)
	conditions = append(conditions, filterConditions(filter, &args)...)

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	limitParam := len(args) + 1
	args = append(args, limit)
	offsetParam := len(args) + 1
	args = append(args, filter.Offset)

	query := fmt.Sprintf(
		`SELECT `+factColumns+` FROM facts WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		strings.Join(conditions, " AND "), limitParam, offsetParam,
	)

	return s.queryFacts(ctx, query, args...)
}

func (s *FactStore) Count(ctx context.Context, memorySpaceID string, filter domain.FactFilter) (int, error) {
	var args []any
	conditions := []string{"memory_space_id = $1"}
	args = append(args, memorySpaceID)
	conditions = append(conditions, filterConditions(filter, &args)...)

	var count int
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM facts WHERE %s`, strings.Join(conditions, " AND ")),
		args...,
	).Scan(&count)
	return count, err
}

func (s *FactStore) Search(ctx context.Context, memorySpaceID string, query string, filter domain.FactFilter) ([]domain.Fact, error) {
	var args []any
	conditions := []string{"memory_space_id = $1"}
	args = append(args, memorySpaceID)

	conditions = append(conditions, fmt.Sprintf("statement ILIKE $%d", len(args)+1))
	args = append(args, "%"+query+"%")

	conditions = append(conditions, filterConditions(filter, &args)...)

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	limitParam := len(args) + 1
	args = append(args, limit)
	offsetParam := len(args) + 1
	args = append(args, filter.Offset)

	q := fmt.Sprintf(
		`SELECT `+factColumns+` FROM facts WHERE %s ORDER BY confidence DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		strings.Join(conditions, " AND "), limitParam, offsetParam,
	)

	return s.queryFacts(ctx, q, args...)
}

func (s *FactStore) ListBySubject(ctx context.Context, memorySpaceID string, subject string) ([]domain.Fact, error) {
	return s.queryFacts(ctx,
		`SELECT `+factColumns+` FROM facts
		 WHERE memory_space_id = $1 AND subject = $2 AND superseded_by IS NULL AND valid_until IS NULL
		 ORDER BY created_at DESC`,
		memorySpaceID, subject,
	)
}

func (s *FactStore) ListBySlot(ctx context.Context, memorySpaceID string, subject string, predicate string) ([]domain.Fact, error) {
	return s.queryFacts(ctx,
		`SELECT `+factColumns+` FROM facts
		 WHERE memory_space_id = $1 AND subject = $2
		   AND predicate <> '' AND LOWER(TRIM(predicate)) = LOWER(TRIM($3))
		   AND superseded_by IS NULL AND valid_until IS NULL
		 ORDER BY created_at DESC`,
		memorySpaceID, subject, predicate,
	)
}

func (s *FactStore) ListLive(ctx context.Context, memorySpaceID string, limit int) ([]domain.Fact, error) {
	if limit <= 0 {
		limit = 500
	}
	return s.queryFacts(ctx,
		`SELECT `+factColumns+` FROM facts
		 WHERE memory_space_id = $1 AND superseded_by IS NULL AND valid_until IS NULL
		 ORDER BY created_at DESC LIMIT $2`,
		memorySpaceID, limit,
	)
}

func (s *FactStore) FindSimilar(ctx context.Context, memorySpaceID string, embedding []float32, threshold float64) ([]domain.FactWithScore, error) {
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT `+factColumns+`, 1 - (embedding <=> $1) AS score
		 FROM facts
		 WHERE memory_space_id = $2 AND embedding IS NOT NULL
		   AND superseded_by IS NULL AND valid_until IS NULL
		   AND 1 - (embedding <=> $1) >= $3
		 ORDER BY score DESC`,
		vec, memorySpaceID, threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("find similar query: %w", err)
	}
	defer rows.Close()

	var results []domain.FactWithScore
	for rows.Next() {
		var fs domain.FactWithScore
		if err := rows.Scan(
			&fs.ID, &fs.MemorySpaceID, &fs.Statement, &fs.Type, &fs.Subject, &fs.Predicate,
			&fs.Object, &fs.Confidence, &fs.SourceType, &fs.Tags, &fs.ValidFrom, &fs.ValidUntil,
			&fs.Supersedes, &fs.SupersededBy, &fs.CreatedAt, &fs.UpdatedAt, &fs.Score,
		); err != nil {
			return nil, fmt.Errorf("scan find similar row: %w", err)
		}
		results = append(results, fs)
	}
	return results, rows.Err()
}

func (s *FactStore) MarkSuperseded(ctx context.Context, memorySpaceID string, oldID uuid.UUID, newID uuid.UUID, at time.Time) error {
	return withRetry(ctx, func() error {
		tag, err := s.db.Exec(ctx,
			`UPDATE facts SET superseded_by = $1, valid_until = $2, updated_at = NOW()
			 WHERE id = $3 AND memory_space_id = $4 AND superseded_by IS NULL`,
			newID, at, oldID, memorySpaceID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			// Either missing or already claimed by a concurrent supersession.
			var exists bool
			if err := s.db.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM facts WHERE id = $1 AND memory_space_id = $2)`,
				oldID, memorySpaceID,
			).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrSuperseded
		}
		return nil
	})
}

func (s *FactStore) ClearSupersession(ctx context.Context, memorySpaceID string, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE facts SET superseded_by = NULL, valid_until = NULL, updated_at = NOW()
		 WHERE id = $1 AND memory_space_id = $2`,
		id, memorySpaceID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *FactStore) LinkSupersedes(ctx context.Context, memorySpaceID string, id uuid.UUID, predecessorID *uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE facts SET supersedes = $1, updated_at = NOW()
		 WHERE id = $2 AND memory_space_id = $3`,
		predecessorID, id, memorySpaceID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *FactStore) Delete(ctx context.Context, memorySpaceID string, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM facts WHERE id = $1 AND memory_space_id = $2`,
		id, memorySpaceID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *FactStore) InvalidateSpace(ctx context.Context, memorySpaceID string, at time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE facts SET valid_until = $1, updated_at = NOW()
		 WHERE memory_space_id = $2 AND valid_until IS NULL`,
		at, memorySpaceID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *FactStore) queryFacts(ctx context.Context, query string, args ...any) ([]domain.Fact, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fact query: %w", err)
	}
	defer rows.Close()

	var facts []domain.Fact
	for rows.Next() {
		var f domain.Fact
		if err := scanFact(rows, &f); err != nil {
			return nil, fmt.Errorf("scan fact row: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
