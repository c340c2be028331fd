package handler

import (
	"github.com/gin-gonic/gin"

	"rag-assistant-go/internal/service"
	"rag-assistant-go/pkg/log"
)

// DocumentHandler serves ingestion requests.
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// IngestRequest is the body of POST /api/v1/documents/ingest.
type IngestRequest struct {
	Source    string `json:"source" binding:"required"`
	ChunkSize *int   `json:"chunkSize"`
	Overlap   *int   `json:"overlap"`
	Truncate  *bool  `json:"truncate"`
}

// Ingest loads and indexes one document source.
func (h *DocumentHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	n, err := h.docService.IngestSource(c.Request.Context(), req.Source, service.IngestOptions{
		ChunkSize: req.ChunkSize,
		Overlap:   req.Overlap,
		Truncate:  req.Truncate,
	})
	if err != nil {
		log.Errorf("[DocumentHandler] ingest of %s failed: %v", req.Source, err)
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"source": req.Source, "chunks": n})
}
