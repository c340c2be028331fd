package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"rag-assistant-go/internal/model"
)

const (
	transcriptTTL        = 7 * 24 * time.Hour
	transcriptMaxEntries = 200
)

// ConversationRepository records finished turns of a session. The transcript is
// an audit trail only: the chat service never feeds it back into a prompt.
type ConversationRepository interface {
	AppendTurn(ctx context.Context, sessionID string, messages ...model.ChatMessage) error
	GetTranscript(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
}

type redisConversationRepository struct {
	redisClient *redis.Client
}

// NewConversationRepository creates a Redis-backed ConversationRepository.
func NewConversationRepository(redisClient *redis.Client) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient}
}

func transcriptKey(sessionID string) string {
	return fmt.Sprintf("transcript:%s", sessionID)
}

// AppendTurn pushes messages onto the session list and keeps the newest entries.
func (r *redisConversationRepository) AppendTurn(ctx context.Context, sessionID string, messages ...model.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	key := transcriptKey(sessionID)
	values := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal transcript message: %w", err)
		}
		values = append(values, b)
	}

	pipe := r.redisClient.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, -transcriptMaxEntries, -1)
	pipe.Expire(ctx, key, transcriptTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append transcript: %w", err)
	}
	return nil
}

// GetTranscript returns the recorded messages of a session, oldest first.
func (r *redisConversationRepository) GetTranscript(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	raw, err := r.redisClient.LRange(ctx, transcriptKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	messages := make([]model.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var m model.ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transcript message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}
