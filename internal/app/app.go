// Package app builds the object graph shared by the console and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"

	"rag-assistant-go/internal/config"
	"rag-assistant-go/internal/pipeline"
	"rag-assistant-go/internal/repository"
	"rag-assistant-go/internal/service"
	"rag-assistant-go/pkg/database"
	"rag-assistant-go/pkg/embedding"
	"rag-assistant-go/pkg/llm"
	"rag-assistant-go/pkg/log"
	"rag-assistant-go/pkg/storage"
	"rag-assistant-go/pkg/tika"
)

// App holds the services of a running assistant.
type App struct {
	Documents     service.DocumentService
	Search        service.SearchService
	Chat          service.ChatService
	Conversations service.ConversationService

	closers []func() error
}

// New connects to the configured backends and wires the services. Redis,
// MinIO and Tika are optional and skipped when their address is empty.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	db, err := database.OpenPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	log.Infof("PostgreSQL connected at %s:%d/%s", cfg.Database.Postgres.Host, cfg.Database.Postgres.Port, cfg.Database.Postgres.Database)

	docVectorRepo := repository.NewDocumentVectorRepository(db)
	if cfg.Database.Postgres.AutoMigrate {
		if err := docVectorRepo.EnsureSchema(ctx, cfg.Embedding.Dimensions); err != nil {
			a.Close()
			return nil, err
		}
	}

	var conversationRepo repository.ConversationRepository
	if cfg.Database.Redis.Addr != "" {
		rdb, err := database.OpenRedis(ctx, cfg.Database.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		conversationRepo = repository.NewConversationRepository(rdb)
		log.Info("Redis transcript store connected")
	} else {
		log.Info("Redis address not configured, transcript disabled")
	}

	var objects pipeline.ObjectReader
	if cfg.MinIO.Endpoint != "" {
		store, err := storage.NewMinIO(cfg.MinIO)
		if err != nil {
			a.Close()
			return nil, err
		}
		objects = store
	}
	var extractor pipeline.TextExtractor
	if cfg.Tika.ServerURL != "" {
		extractor = tika.NewClient(cfg.Tika)
	}

	processor := pipeline.NewProcessor(
		embedding.NewClient(cfg.Embedding),
		docVectorRepo,
		pipeline.NewLoader(objects, extractor),
	)

	a.Documents = service.NewDocumentService(processor, cfg.Ingestion, cfg.Embedding.Dimensions)
	a.Search = service.NewSearchService(processor, cfg.Retrieval, cfg.Embedding.Dimensions)
	a.Conversations = service.NewConversationService(conversationRepo)
	a.Chat = service.NewChatService(a.Search, llm.NewClient(cfg.LLM), conversationRepo, cfg.LLM.Prompt)
	return a, nil
}

// IngestConfigured indexes ingestion.source with the configured parameters.
// An empty source is skipped.
func (a *App) IngestConfigured(ctx context.Context, ingestion config.IngestionConfig) error {
	if ingestion.Source == "" {
		log.Info("no ingestion.source configured, skipping startup ingestion")
		return nil
	}
	if _, err := a.Documents.IngestSource(ctx, ingestion.Source, service.IngestOptions{}); err != nil {
		return fmt.Errorf("startup ingestion of %s failed: %w", ingestion.Source, err)
	}
	return nil
}

// Close releases the backend connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
