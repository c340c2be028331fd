package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"rag-assistant-go/internal/service"
	"rag-assistant-go/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatHandler serves the websocket chat stream.
type ChatHandler struct {
	chatService         service.ChatService
	conversationService service.ConversationService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService service.ChatService, conversationService service.ConversationService) *ChatHandler {
	return &ChatHandler{
		chatService:         chatService,
		conversationService: conversationService,
	}
}

// Handle upgrades the connection and answers every text frame as a question.
// The first frame sent to the client carries the session id of the connection.
// A {"type":"stop"} frame discards the rest of the answer being streamed.
func (h *ChatHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", err)
		return
	}
	defer conn.Close()

	sessionID := h.conversationService.NewSessionID()
	log.Infof("[ChatHandler] websocket connected, session: %s", sessionID)
	if err := writeJSON(conn, map[string]string{"type": "session", "sessionId": sessionID}); err != nil {
		return
	}

	var stopped atomic.Bool
	queries := make(chan string, 8)
	done := make(chan struct{})
	defer close(done)
	go readQueries(conn, queries, done, &stopped)

	for query := range queries {
		stopped.Store(false)
		if err := h.chatService.StreamResponse(c.Request.Context(), sessionID, query, conn, stopped.Load); err != nil {
			log.Errorf("[ChatHandler] streaming answer failed: %v", err)
			if writeJSON(conn, map[string]string{"error": "AI service temporarily unavailable, please retry"}) != nil {
				return
			}
			if conn.WriteMessage(websocket.TextMessage, service.CompletionNotice()) != nil {
				return
			}
		}
	}
}

// readQueries owns the read side of conn. Questions are queued on queries,
// stop frames raise stopped, and queries is closed when the connection ends.
// It gives up once done is closed.
func readQueries(conn *websocket.Conn, queries chan<- string, done <-chan struct{}, stopped *atomic.Bool) {
	defer close(queries)
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("[ChatHandler] failed to read from websocket: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if isStopFrame(message) {
			log.Info("[ChatHandler] stop requested by client")
			stopped.Store(true)
			continue
		}
		query := strings.TrimSpace(string(message))
		if query == "" {
			continue
		}
		select {
		case queries <- query:
		case <-done:
			return
		}
	}
}

func isStopFrame(message []byte) bool {
	var frame struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(message, &frame) == nil && frame.Type == "stop"
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}
