package repository

import (
	"context"
	"errors"
	"math"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rag-assistant-go/internal/model"
)

func newMockRepo(t *testing.T) (DocumentVectorRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewDocumentVectorRepository(db), mock
}

func TestReset(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("TRUNCATE TABLE vectors")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Reset(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetFailureIsPersistenceError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("TRUNCATE TABLE vectors")).
		WillReturnError(errors.New("connection refused"))

	err := repo.Reset(context.Background())
	assert.ErrorIs(t, err, model.ErrPersistence)
	assert.ErrorContains(t, err, "connection refused")
}

func TestBatchCreate(t *testing.T) {
	t.Run("single multi-row insert", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "vectors" ("document_name","text","embedding") VALUES ($1,$2,$3),($4,$5,$6)`)).
			WithArgs("manual.txt", "first", sqlmock.AnyArg(), "manual.txt", "second", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
		mock.ExpectCommit()

		rows := []*model.DocumentVector{
			model.NewDocumentVector("manual.txt", "first", []float32{1, 0}),
			model.NewDocumentVector("manual.txt", "second", []float32{0, 1}),
		}
		require.NoError(t, repo.BatchCreate(context.Background(), rows))
		assert.Equal(t, uint(1), rows[0].ID)
		assert.Equal(t, uint(2), rows[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		require.NoError(t, repo.BatchCreate(context.Background(), nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("constraint violation rolls back", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "vectors"`)).
			WillReturnError(errors.New("expected 3 dimensions, not 2"))
		mock.ExpectRollback()

		err := repo.BatchCreate(context.Background(), []*model.DocumentVector{
			model.NewDocumentVector("manual.txt", "first", []float32{1, 0}),
		})
		assert.ErrorIs(t, err, model.ErrPersistence)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransaction(t *testing.T) {
	t.Run("commits truncate and insert together", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("TRUNCATE TABLE vectors")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "vectors"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		err := repo.Transaction(context.Background(), func(tx DocumentVectorRepository) error {
			if err := tx.Reset(context.Background()); err != nil {
				return err
			}
			return tx.BatchCreate(context.Background(), []*model.DocumentVector{
				model.NewDocumentVector("manual.txt", "only", []float32{1, 0}),
			})
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error rolls back the truncate", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("TRUNCATE TABLE vectors")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		boom := errors.New("embedding call failed")
		err := repo.Transaction(context.Background(), func(tx DocumentVectorRepository) error {
			if err := tx.Reset(context.Background()); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSearch(t *testing.T) {
	t.Run("cosine with cutoff and limit", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("embedding <=> $1::vector AS distance")).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 0.5, 2).
			WillReturnRows(sqlmock.NewRows([]string{"document_name", "text", "distance"}).
				AddRow("manual.txt", "closest", 0.1).
				AddRow("manual.txt", "runner-up", 0.3))

		results, err := repo.Search(context.Background(), []float32{1, 0}, model.CosineDistance, 0.5, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "closest", results[0].Text)
		assert.Equal(t, "runner-up", results[1].Text)
		assert.InDelta(t, 0.9, results[0].Score, 1e-9)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("euclidean operator", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("embedding <-> $1::vector AS distance")).
			WillReturnRows(sqlmock.NewRows([]string{"document_name", "text", "distance"}).
				AddRow("manual.txt", "near", 1.0))

		results, err := repo.Search(context.Background(), []float32{1, 0}, model.EuclideanDistance, 3, 4)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 0.5, results[0].Score, 1e-9)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty table is not an error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM vectors")).
			WillReturnRows(sqlmock.NewRows([]string{"document_name", "text", "distance"}))

		results, err := repo.Search(context.Background(), []float32{1, 0}, model.CosineDistance, 0.5, 4)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("query failure is a retrieval error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM vectors")).
			WillReturnError(errors.New(`relation "vectors" does not exist`))

		_, err := repo.Search(context.Background(), []float32{1, 0}, model.CosineDistance, 0.5, 4)
		assert.ErrorIs(t, err, model.ErrRetrieval)
	})

	t.Run("unknown mode never reaches the store", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		_, err := repo.Search(context.Background(), []float32{1, 0}, model.SearchMode(9), 0.5, 4)
		assert.ErrorIs(t, err, model.ErrRetrieval)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBuildSearchSQL(t *testing.T) {
	vec := pgvector.NewVector([]float32{1, 2})

	sql, args := buildSearchSQL("<=>", vec, 0.5, 4)
	assert.Contains(t, sql, "WHERE embedding <=> ?::vector <= ?")
	assert.Contains(t, sql, "ORDER BY distance")
	assert.Equal(t, []interface{}{vec, vec, 0.5, 4}, args)

	sql, args = buildSearchSQL("<->", vec, math.Inf(1), 4)
	assert.NotContains(t, sql, "WHERE")
	assert.Equal(t, []interface{}{vec, 4}, args)
}

func TestEnsureSchema(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE EXTENSION IF NOT EXISTS vector")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("embedding VECTOR(1536)")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background(), 1536))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.ErrorIs(t, repo.EnsureSchema(context.Background(), 0), model.ErrConfiguration)
}
