package service

import (
	"context"
	"fmt"
	"sync"

	"rag-assistant-go/internal/config"
	"rag-assistant-go/internal/model"
	"rag-assistant-go/internal/pipeline"
	"rag-assistant-go/pkg/log"
)

// FileIngester is the ingestion half of pipeline.Processor.
type FileIngester interface {
	IngestFile(ctx context.Context, source string, req pipeline.IngestRequest) (int, error)
}

// IngestOptions overrides the configured ingestion parameters for one run.
// Nil fields fall back to the configuration.
type IngestOptions struct {
	ChunkSize *int
	Overlap   *int
	Truncate  *bool
}

// DocumentService defines the ingestion operations.
type DocumentService interface {
	// IngestSource loads source and replaces or extends the indexed chunks.
	// It returns the number of stored chunks.
	IngestSource(ctx context.Context, source string, opts IngestOptions) (int, error)
}

type documentService struct {
	ingester   FileIngester
	ingestion  config.IngestionConfig
	dimensions int
	// Runs are serialized: two concurrent truncate+insert transactions would
	// race on the same table.
	mu sync.Mutex
}

// NewDocumentService creates a DocumentService with the given ingestion defaults.
func NewDocumentService(ingester FileIngester, ingestion config.IngestionConfig, dimensions int) DocumentService {
	return &documentService{
		ingester:   ingester,
		ingestion:  ingestion,
		dimensions: dimensions,
	}
}

func (s *documentService) IngestSource(ctx context.Context, source string, opts IngestOptions) (int, error) {
	if source == "" {
		return 0, fmt.Errorf("%w: empty document source", model.ErrConfiguration)
	}
	req := pipeline.IngestRequest{
		ChunkSize:        s.ingestion.ChunkSize,
		Overlap:          s.ingestion.Overlap,
		Dimensions:       s.dimensions,
		TruncateExisting: s.ingestion.TruncateTable,
	}
	if opts.ChunkSize != nil {
		req.ChunkSize = *opts.ChunkSize
	}
	if opts.Overlap != nil {
		req.Overlap = *opts.Overlap
	}
	if opts.Truncate != nil {
		req.TruncateExisting = *opts.Truncate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.ingester.IngestFile(ctx, source, req)
	if err != nil {
		return 0, err
	}
	log.Infof("[DocumentService] %s indexed as %d chunks", source, n)
	return n, nil
}
