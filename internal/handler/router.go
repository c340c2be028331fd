package handler

import (
	"github.com/gin-gonic/gin"

	"rag-assistant-go/internal/middleware"
	"rag-assistant-go/internal/service"
)

// Services are the dependencies of the HTTP routes.
type Services struct {
	Documents     service.DocumentService
	Search        service.SearchService
	Chat          service.ChatService
	Conversations service.ConversationService
}

// NewRouter registers every route on a new gin engine.
func NewRouter(s Services) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/documents/ingest", NewDocumentHandler(s.Documents).Ingest)
		apiV1.GET("/search", NewSearchHandler(s.Search).Search)
		apiV1.GET("/sessions/:id/transcript", NewConversationHandler(s.Conversations).GetTranscript)
	}
	r.GET("/chat", NewChatHandler(s.Chat, s.Conversations).Handle)
	return r
}
