package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"portfolio-chat/internal/domain"
)

const defaultMaxMessage = 2000

// SessionStore holds the ordered turns of each session.
type SessionStore interface {
	History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	Append(ctx context.Context, sessionID string, turns ...domain.ChatMessage) error
}

// Responder produces the reply for one visitor message.
type Responder interface {
	Respond(ctx context.Context, query string, history []domain.ChatMessage) string
}

type ChatService struct {
	engine        Responder
	sessions      SessionStore
	maxMessageLen int
}

type ChatInput struct {
	Message   string
	SessionID string
}

type ChatOutput struct {
	Response  string
	SessionID string
}

func NewChatService(engine Responder, sessions SessionStore, maxMessageLen int) (*ChatService, error) {
	if engine == nil {
		return nil, errors.New("usecase: engine must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	return &ChatService{
		engine:        engine,
		sessions:      sessions,
		maxMessageLen: maxMessageLen,
	}, nil
}

// Chat answers one message and appends the user and assistant turns to the
// session. Concurrent calls for the same session are not serialized.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(message) > s.maxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = newUUID()
	}

	history, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "session_read_error", err)
	}

	reply := s.engine.Respond(ctx, message, history)

	if err := s.sessions.Append(ctx, sessionID, domain.UserMessage(message), domain.AssistantMessage(reply)); err != nil {
		return ChatOutput{}, newError(ErrorInternal, "session_write_error", err)
	}
	slog.Debug("chat turn completed", "session_id", sessionID, "history_turns", len(history))

	return ChatOutput{
		Response:  reply,
		SessionID: sessionID,
	}, nil
}

var newUUID = func() string {
	return uuid.NewString()
}
