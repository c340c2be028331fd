// Package repository implements data access for the vector store and the chat transcript.
package repository

import (
	"context"
	"fmt"
	"math"

	"gorm.io/gorm"
	"rag-assistant-go/internal/model"

	"github.com/pgvector/pgvector-go"
)

// DocumentVectorRepository owns the SQL against the vectors table.
type DocumentVectorRepository interface {
	// Reset deletes every row of the vectors table.
	Reset(ctx context.Context) error
	// BatchCreate inserts all rows in a single statement, atomically.
	BatchCreate(ctx context.Context, vectors []*model.DocumentVector) error
	// Search returns at most limit rows whose distance to query is <= maxDistance,
	// closest first. An empty result is not an error.
	Search(ctx context.Context, query []float32, mode model.SearchMode, maxDistance float64, limit int) ([]model.SearchResult, error)
	// Transaction runs fn against a repository bound to one transaction.
	Transaction(ctx context.Context, fn func(repo DocumentVectorRepository) error) error
	// EnsureSchema creates the vector extension and the vectors table if missing.
	EnsureSchema(ctx context.Context, dimensions int) error
}

type documentVectorRepository struct {
	db *gorm.DB
}

// NewDocumentVectorRepository creates a DocumentVectorRepository on top of db.
func NewDocumentVectorRepository(db *gorm.DB) DocumentVectorRepository {
	return &documentVectorRepository{db: db}
}

func (r *documentVectorRepository) Reset(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Exec("TRUNCATE TABLE vectors").Error; err != nil {
		return fmt.Errorf("%w: truncate vectors: %w", model.ErrPersistence, err)
	}
	return nil
}

func (r *documentVectorRepository) BatchCreate(ctx context.Context, vectors []*model.DocumentVector) error {
	if len(vectors) == 0 {
		return nil
	}
	// A slice passed to Create renders one multi-row INSERT. PostgreSQL binds at
	// most 65535 parameters per statement, three per row here.
	if err := r.db.WithContext(ctx).Create(&vectors).Error; err != nil {
		return fmt.Errorf("%w: insert %d vectors: %w", model.ErrPersistence, len(vectors), err)
	}
	return nil
}

type searchRow struct {
	DocumentName string
	Text         string
	Distance     float64
}

func (r *documentVectorRepository) Search(ctx context.Context, query []float32, mode model.SearchMode, maxDistance float64, limit int) ([]model.SearchResult, error) {
	op, err := mode.Operator()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []model.SearchResult{}, nil
	}

	vec := pgvector.NewVector(query)
	sql, args := buildSearchSQL(op, vec, maxDistance, limit)

	var rows []searchRow
	err = r.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		return conn.Raw(sql, args...).Scan(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s search: %w", model.ErrRetrieval, mode, err)
	}

	results := make([]model.SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, model.SearchResult{
			DocumentName: row.DocumentName,
			Text:         row.Text,
			Distance:     row.Distance,
			Score:        mode.Score(row.Distance),
		})
	}
	return results, nil
}

// buildSearchSQL renders the similarity query. op comes from the closed
// SearchMode table, never from user input. An infinite cutoff drops the
// WHERE clause since no row can be excluded by it.
func buildSearchSQL(op string, vec pgvector.Vector, maxDistance float64, limit int) (string, []interface{}) {
	if math.IsInf(maxDistance, 1) {
		sql := fmt.Sprintf(`SELECT document_name, text, embedding %[1]s ?::vector AS distance
FROM vectors
ORDER BY distance
LIMIT ?`, op)
		return sql, []interface{}{vec, limit}
	}
	sql := fmt.Sprintf(`SELECT document_name, text, embedding %[1]s ?::vector AS distance
FROM vectors
WHERE embedding %[1]s ?::vector <= ?
ORDER BY distance
LIMIT ?`, op)
	return sql, []interface{}{vec, vec, maxDistance, limit}
}

func (r *documentVectorRepository) Transaction(ctx context.Context, fn func(repo DocumentVectorRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&documentVectorRepository{db: tx})
	})
}

func (r *documentVectorRepository) EnsureSchema(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", model.ErrConfiguration, dimensions)
	}
	db := r.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("%w: create extension: %w", model.ErrPersistence, err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vectors (
    id SERIAL PRIMARY KEY,
    document_name TEXT,
    text TEXT NOT NULL,
    embedding VECTOR(%d)
)`, dimensions)
	if err := db.Exec(ddl).Error; err != nil {
		return fmt.Errorf("%w: create vectors table: %w", model.ErrPersistence, err)
	}
	return nil
}
