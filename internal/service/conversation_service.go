package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"rag-assistant-go/internal/model"
	"rag-assistant-go/internal/repository"
)

// ConversationService exposes the recorded transcripts.
type ConversationService interface {
	// NewSessionID returns a fresh identifier for a console run or websocket connection.
	NewSessionID() string
	// GetTranscript returns the recorded messages of a session, oldest first.
	GetTranscript(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
}

type conversationService struct {
	repo repository.ConversationRepository
}

// NewConversationService creates a ConversationService. repo may be nil when
// no transcript store is configured.
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo}
}

func (s *conversationService) NewSessionID() string {
	return uuid.NewString()
}

func (s *conversationService) GetTranscript(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("%w: transcript store is not configured", model.ErrConfiguration)
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("%w: invalid session id %q", model.ErrConfiguration, sessionID)
	}
	return s.repo.GetTranscript(ctx, sessionID)
}
