// Package pipeline implements document ingestion and similarity retrieval.
package pipeline

import (
	"context"
	"fmt"

	"rag-assistant-go/internal/model"
	"rag-assistant-go/internal/repository"
	"rag-assistant-go/pkg/embedding"
	"rag-assistant-go/pkg/log"
)

// IngestRequest describes one ingestion run.
type IngestRequest struct {
	SourceName       string
	Text             string
	ChunkSize        int
	Overlap          int
	Dimensions       int
	TruncateExisting bool
}

// SearchRequest describes one similarity search.
type SearchRequest struct {
	Query          string
	Mode           model.SearchMode
	TopK           int
	ScoreThreshold float64
	Dimensions     int
}

// Processor chunks, embeds, stores and retrieves document text.
type Processor struct {
	embeddingClient embedding.Client
	docVectorRepo   repository.DocumentVectorRepository
	loader          *Loader
}

// NewProcessor creates a Processor. loader may be nil when only Ingest and
// Search are used.
func NewProcessor(
	embeddingClient embedding.Client,
	docVectorRepo repository.DocumentVectorRepository,
	loader *Loader,
) *Processor {
	return &Processor{
		embeddingClient: embeddingClient,
		docVectorRepo:   docVectorRepo,
		loader:          loader,
	}
}

// IngestFile loads source through the Loader and ingests its text under the
// source name.
func (p *Processor) IngestFile(ctx context.Context, source string, req IngestRequest) (int, error) {
	if p.loader == nil {
		return 0, fmt.Errorf("%w: no document loader configured", model.ErrConfiguration)
	}
	log.Infof("[Processor] loading document %s", source)
	text, err := p.loader.Load(ctx, source)
	if err != nil {
		return 0, err
	}
	req.SourceName = source
	req.Text = text
	return p.Ingest(ctx, req)
}

// Ingest splits req.Text, embeds every chunk in one call and stores the rows.
// Truncation and insertion share one transaction: on any failure nothing from
// this call is committed and the previous table contents survive.
// It returns the number of stored chunks.
func (p *Processor) Ingest(ctx context.Context, req IngestRequest) (int, error) {
	log.Infof("[Processor] ingesting %s, chunkSize: %d, overlap: %d, truncate: %t",
		req.SourceName, req.ChunkSize, req.Overlap, req.TruncateExisting)

	chunks, err := SplitText(req.Text, req.ChunkSize, req.Overlap)
	if err != nil {
		return 0, err
	}
	log.Infof("[Processor] split %s into %d chunks", req.SourceName, len(chunks))

	err = p.docVectorRepo.Transaction(ctx, func(repo repository.DocumentVectorRepository) error {
		if req.TruncateExisting {
			if err := repo.Reset(ctx); err != nil {
				return err
			}
			log.Info("[Processor] vectors table truncated")
		}
		if len(chunks) == 0 {
			log.Warnf("[Processor] %s produced no chunks, nothing to insert", req.SourceName)
			return nil
		}

		vectors, err := p.embed(ctx, chunks, req.Dimensions)
		if err != nil {
			return err
		}

		rows := make([]*model.DocumentVector, 0, len(chunks))
		for i, chunk := range chunks {
			rows = append(rows, model.NewDocumentVector(req.SourceName, chunk, vectors[i]))
		}
		return repo.BatchCreate(ctx, rows)
	})
	if err != nil {
		log.Errorf("[Processor] ingestion of %s failed: %v", req.SourceName, err)
		return 0, err
	}

	log.Infof("[Processor] stored %d chunks of %s", len(chunks), req.SourceName)
	return len(chunks), nil
}

// Search returns the texts of the chunks closest to req.Query, closest first.
// No qualifying chunk yields an empty slice and a nil error.
func (p *Processor) Search(ctx context.Context, req SearchRequest) ([]string, error) {
	results, err := p.SearchResults(ctx, req)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	return texts, nil
}

// SearchResults is Search with document names, distances and scores kept.
func (p *Processor) SearchResults(ctx context.Context, req SearchRequest) ([]model.SearchResult, error) {
	if _, err := req.Mode.Operator(); err != nil {
		return nil, err
	}
	maxDistance, err := req.Mode.MaxDistance(req.ScoreThreshold)
	if err != nil {
		return nil, err
	}

	vectors, err := p.embed(ctx, []string{req.Query}, req.Dimensions)
	if err != nil {
		return nil, err
	}

	log.Debugf("[Processor] %s search, topK: %d, threshold: %v, maxDistance: %v", req.Mode, req.TopK, req.ScoreThreshold, maxDistance)
	results, err := p.docVectorRepo.Search(ctx, vectors[0], req.Mode, maxDistance, req.TopK)
	if err != nil {
		log.Errorf("[Processor] similarity search failed: %v", err)
		return nil, err
	}
	log.Infof("[Processor] %s search returned %d chunks", req.Mode, len(results))
	return results, nil
}

// embed calls the gateway once and checks it returned one vector of the
// requested size per input.
func (p *Processor) embed(ctx context.Context, inputs []string, dimensions int) ([][]float32, error) {
	vectors, err := p.embeddingClient.CreateEmbeddings(ctx, inputs, dimensions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrEmbeddingGateway, err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", model.ErrEmbeddingMismatch, len(vectors), len(inputs))
	}
	if dimensions > 0 {
		for i, v := range vectors {
			if len(v) != dimensions {
				return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", model.ErrEmbeddingMismatch, i, len(v), dimensions)
			}
		}
	}
	return vectors, nil
}
