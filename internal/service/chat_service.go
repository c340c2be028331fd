package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"rag-assistant-go/internal/config"
	"rag-assistant-go/internal/model"
	"rag-assistant-go/internal/repository"
	"rag-assistant-go/pkg/llm"
	"rag-assistant-go/pkg/log"
)

// DefaultSystemPrompt frames the assistant and the layout of the user message.
const DefaultSystemPrompt = `You are a RAG-powered assistant that assists users with their questions about microwave usage.

## Structure of User message:
` + "`RAG CONTEXT`" + ` - Retrieved documents relevant to the query.
` + "`USER QUESTION`" + ` - The user's actual question.

## Instructions:
- Use information from ` + "`RAG CONTEXT`" + ` as context when answering the ` + "`USER QUESTION`" + `.
- Cite specific sources when using information from the context.
- Answer ONLY based on conversation history and RAG context.
- If no relevant information exists in ` + "`RAG CONTEXT`" + ` or conversation history, state that you cannot answer the question.
`

// DefaultUserPrompt is the augmentation template. {context} and {query} are
// substituted in a single pass.
const DefaultUserPrompt = "##RAG CONTEXT:\n{context}\n\n\n##USER QUESTION: \n{query}"

// ChatService answers one question per turn: retrieve, augment, generate.
// Turns are independent; the transcript is recorded but never replayed.
type ChatService interface {
	// Answer returns the complete reply to query.
	Answer(ctx context.Context, sessionID, query string) (string, error)
	// StreamResponse writes the reply to writer as {"chunk": ...} frames
	// followed by a completion notice. shouldStop may be nil.
	StreamResponse(ctx context.Context, sessionID, query string, writer llm.MessageWriter, shouldStop func() bool) error
}

type chatService struct {
	searchService    SearchService
	llmClient        llm.Client
	conversationRepo repository.ConversationRepository
	prompt           config.LLMPromptConfig
}

// NewChatService creates a ChatService. conversationRepo may be nil, in which
// case no transcript is kept.
func NewChatService(searchService SearchService, llmClient llm.Client, conversationRepo repository.ConversationRepository, prompt config.LLMPromptConfig) ChatService {
	return &chatService{
		searchService:    searchService,
		llmClient:        llmClient,
		conversationRepo: conversationRepo,
		prompt:           prompt,
	}
}

func (s *chatService) Answer(ctx context.Context, sessionID, query string) (string, error) {
	messages, err := s.buildMessages(ctx, query)
	if err != nil {
		return "", err
	}

	reply, err := s.llmClient.Complete(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	s.recordTurn(sessionID, query, reply.Content)
	return reply.Content, nil
}

func (s *chatService) StreamResponse(ctx context.Context, sessionID, query string, writer llm.MessageWriter, shouldStop func() bool) error {
	messages, err := s.buildMessages(ctx, query)
	if err != nil {
		return err
	}

	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{conn: writer, writer: answerBuilder, shouldStop: shouldStop}
	if err := s.llmClient.StreamChatMessages(ctx, messages, nil, interceptor); err != nil {
		return fmt.Errorf("failed to stream answer: %w", err)
	}

	sendCompletion(writer)
	if answerBuilder.Len() > 0 {
		s.recordTurn(sessionID, query, answerBuilder.String())
	}
	return nil
}

// buildMessages retrieves context for query and renders the system and
// augmented user messages.
func (s *chatService) buildMessages(ctx context.Context, query string) ([]llm.Message, error) {
	chunks, err := s.searchService.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	log.Infof("[ChatService] retrieved %d context chunks", len(chunks))

	return []llm.Message{
		{Role: model.RoleSystem, Content: s.systemPrompt()},
		{Role: model.RoleUser, Content: s.augment(chunks, query)},
	}, nil
}

func (s *chatService) systemPrompt() string {
	if s.prompt.System != "" {
		return s.prompt.System
	}
	return DefaultSystemPrompt
}

func (s *chatService) augment(chunks []string, query string) string {
	template := s.prompt.User
	if template == "" {
		template = DefaultUserPrompt
	}
	contextText := strings.Join(chunks, "\n")
	if len(chunks) == 0 && s.prompt.NoResultText != "" {
		contextText = s.prompt.NoResultText
	}
	return strings.NewReplacer("{context}", contextText, "{query}", query).Replace(template)
}

// recordTurn appends the finished turn to the transcript. Failures are logged
// only: the user already has the answer.
func (s *chatService) recordTurn(sessionID, question, answer string) {
	if s.conversationRepo == nil || sessionID == "" {
		return
	}
	now := time.Now()
	// Background context: a cancelled request should not lose a generated answer.
	err := s.conversationRepo.AppendTurn(context.Background(), sessionID,
		model.ChatMessage{Role: model.RoleUser, Content: question, Timestamp: now},
		model.ChatMessage{Role: model.RoleAssistant, Content: answer, Timestamp: now},
	)
	if err != nil {
		log.Errorf("[ChatService] failed to record transcript for session %s: %v", sessionID, err)
	}
}

// wsWriterInterceptor captures streamed chunks and forwards them as JSON frames.
type wsWriterInterceptor struct {
	conn       llm.MessageWriter
	writer     *strings.Builder
	shouldStop func() bool
}

// WriteMessage satisfies llm.MessageWriter.
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.shouldStop != nil && w.shouldStop() {
		return nil
	}
	w.writer.Write(data)
	b, err := json.Marshal(map[string]string{"chunk": string(data)})
	if err != nil {
		return err
	}
	return w.conn.WriteMessage(messageType, b)
}

// sendCompletion writes the end-of-answer notice.
func sendCompletion(conn llm.MessageWriter) {
	_ = conn.WriteMessage(websocket.TextMessage, CompletionNotice())
}

// CompletionNotice renders the JSON frame that closes a streamed answer.
func CompletionNotice() []byte {
	now := time.Now()
	b, _ := json.Marshal(map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "response completed",
		"timestamp": now.UnixMilli(),
		"date":      now.Format("2006-01-02T15:04:05"),
	})
	return b
}
