package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"rag-assistant-go/internal/model"
	"rag-assistant-go/internal/service"
	"rag-assistant-go/pkg/log"
)

// SearchHandler serves similarity searches.
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search handles GET /api/v1/search?query=&topK=&scoreThreshold=&mode=.
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		respondBadRequest(c, "query is required")
		return
	}

	var opts service.SearchOptions
	if mode := c.Query("mode"); mode != "" {
		if _, err := model.ParseSearchMode(mode); err != nil {
			respondBadRequest(c, err.Error())
			return
		}
		opts.Mode = mode
	}
	if raw := c.Query("topK"); raw != "" {
		topK, err := strconv.Atoi(raw)
		if err != nil || topK <= 0 {
			respondBadRequest(c, "topK must be a positive integer")
			return
		}
		opts.TopK = topK
	}
	if raw := c.Query("scoreThreshold"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondBadRequest(c, "scoreThreshold must be a number")
			return
		}
		opts.ScoreThreshold = &threshold
	}

	results, err := h.searchService.Search(c.Request.Context(), query, opts)
	if err != nil {
		log.Errorf("[SearchHandler] search failed: %v", err)
		respondError(c, err)
		return
	}
	if results == nil {
		results = []model.SearchResult{}
	}
	log.Infof("[SearchHandler] query '%s' returned %d results", query, len(results))
	respondOK(c, results)
}
