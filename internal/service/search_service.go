// Package service wires the pipeline, the chat gateway and the transcript into
// the operations exposed by the console and the HTTP server.
package service

import (
	"context"

	"rag-assistant-go/internal/config"
	"rag-assistant-go/internal/model"
	"rag-assistant-go/internal/pipeline"
	"rag-assistant-go/pkg/log"
)

// Searcher is the retrieval half of pipeline.Processor.
type Searcher interface {
	Search(ctx context.Context, req pipeline.SearchRequest) ([]string, error)
	SearchResults(ctx context.Context, req pipeline.SearchRequest) ([]model.SearchResult, error)
}

// SearchOptions overrides the configured retrieval parameters for one call.
// Zero values fall back to the configuration.
type SearchOptions struct {
	Mode           string
	TopK           int
	ScoreThreshold *float64
}

// SearchService defines the retrieval operations.
type SearchService interface {
	// Retrieve returns the context chunks for query with the configured parameters.
	Retrieve(ctx context.Context, query string) ([]string, error)
	// Search returns detailed results for query, applying opts over the configuration.
	Search(ctx context.Context, query string, opts SearchOptions) ([]model.SearchResult, error)
}

type searchService struct {
	searcher   Searcher
	retrieval  config.RetrievalConfig
	dimensions int
}

// NewSearchService creates a SearchService with the given retrieval defaults.
func NewSearchService(searcher Searcher, retrieval config.RetrievalConfig, dimensions int) SearchService {
	return &searchService{
		searcher:   searcher,
		retrieval:  retrieval,
		dimensions: dimensions,
	}
}

func (s *searchService) Retrieve(ctx context.Context, query string) ([]string, error) {
	req, err := s.buildRequest(query, SearchOptions{})
	if err != nil {
		return nil, err
	}
	return s.searcher.Search(ctx, req)
}

func (s *searchService) Search(ctx context.Context, query string, opts SearchOptions) ([]model.SearchResult, error) {
	req, err := s.buildRequest(query, opts)
	if err != nil {
		return nil, err
	}
	log.Infof("[SearchService] search, query: '%s', mode: %s, topK: %d, threshold: %v", query, req.Mode, req.TopK, req.ScoreThreshold)
	return s.searcher.SearchResults(ctx, req)
}

func (s *searchService) buildRequest(query string, opts SearchOptions) (pipeline.SearchRequest, error) {
	modeName := s.retrieval.Mode
	if opts.Mode != "" {
		modeName = opts.Mode
	}
	mode, err := model.ParseSearchMode(modeName)
	if err != nil {
		return pipeline.SearchRequest{}, err
	}

	req := pipeline.SearchRequest{
		Query:          query,
		Mode:           mode,
		TopK:           s.retrieval.TopK,
		ScoreThreshold: s.retrieval.ScoreThreshold,
		Dimensions:     s.dimensions,
	}
	if opts.TopK > 0 {
		req.TopK = opts.TopK
	}
	if opts.ScoreThreshold != nil {
		req.ScoreThreshold = *opts.ScoreThreshold
	}
	return req, nil
}
