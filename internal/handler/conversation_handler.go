package handler

import (
	"github.com/gin-gonic/gin"

	"rag-assistant-go/internal/service"
)

// ConversationHandler serves recorded transcripts.
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// GetTranscript handles GET /api/v1/sessions/:id/transcript.
func (h *ConversationHandler) GetTranscript(c *gin.Context) {
	messages, err := h.service.GetTranscript(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, messages)
}
