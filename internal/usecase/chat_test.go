package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"portfolio-chat/internal/domain"
)

type fakeSessions struct {
	turns     map[string][]domain.ChatMessage
	readErr   error
	appendErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{turns: map[string][]domain.ChatMessage{}}
}

func (f *fakeSessions) History(_ context.Context, id string) ([]domain.ChatMessage, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return append([]domain.ChatMessage(nil), f.turns[id]...), nil
}

func (f *fakeSessions) Append(_ context.Context, id string, turns ...domain.ChatMessage) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.turns[id] = append(f.turns[id], turns...)
	return nil
}

type echoResponder struct {
	histories [][]domain.ChatMessage
}

func (r *echoResponder) Respond(_ context.Context, query string, history []domain.ChatMessage) string {
	r.histories = append(r.histories, history)
	return "re: " + query
}

func TestNewChatService_RequiresDependencies(t *testing.T) {
	_, err := NewChatService(nil, newFakeSessions(), 0)
	require.Error(t, err)

	_, err = NewChatService(&echoResponder{}, nil, 0)
	require.Error(t, err)
}

func TestChat_RejectsEmptyMessage(t *testing.T) {
	svc, err := NewChatService(&echoResponder{}, newFakeSessions(), 0)
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), ChatInput{Message: "   "})

	var ue *Error
	require.True(t, errors.As(err, &ue))
	require.Equal(t, ErrorInvalidInput, ue.Code)
	require.Equal(t, "empty_message", ue.Reason)
}

func TestChat_RejectsLongMessage(t *testing.T) {
	svc, err := NewChatService(&echoResponder{}, newFakeSessions(), 10)
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), ChatInput{Message: strings.Repeat("a", 11)})

	var ue *Error
	require.True(t, errors.As(err, &ue))
	require.Equal(t, ErrorInvalidInput, ue.Code)
	require.Equal(t, "message_too_long", ue.Reason)
}

func TestChat_GeneratesSessionID(t *testing.T) {
	orig := newUUID
	newUUID = func() string { return "generated-id" }
	t.Cleanup(func() { newUUID = orig })

	sessions := newFakeSessions()
	svc, err := NewChatService(&echoResponder{}, sessions, 0)
	require.NoError(t, err)

	out, err := svc.Chat(context.Background(), ChatInput{Message: "hello"})
	require.NoError(t, err)
	require.Equal(t, "generated-id", out.SessionID)
	require.Equal(t, "re: hello", out.Response)
	require.Len(t, sessions.turns["generated-id"], 2)
}

func TestChat_SameSessionAccumulatesTurns(t *testing.T) {
	sessions := newFakeSessions()
	responder := &echoResponder{}
	svc, err := NewChatService(responder, sessions, 0)
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), ChatInput{Message: "first", SessionID: "s1"})
	require.NoError(t, err)
	out, err := svc.Chat(context.Background(), ChatInput{Message: " second ", SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, "s1", out.SessionID)

	require.Equal(t, []domain.ChatMessage{
		domain.UserMessage("first"),
		domain.AssistantMessage("re: first"),
		domain.UserMessage("second"),
		domain.AssistantMessage("re: second"),
	}, sessions.turns["s1"])

	require.Empty(t, responder.histories[0])
	require.Len(t, responder.histories[1], 2)
}

func TestChat_SessionReadFailure(t *testing.T) {
	sessions := newFakeSessions()
	sessions.readErr = errors.New("table missing")
	svc, err := NewChatService(&echoResponder{}, sessions, 0)
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), ChatInput{Message: "hi", SessionID: "s"})

	var ue *Error
	require.True(t, errors.As(err, &ue))
	require.Equal(t, ErrorInternal, ue.Code)
	require.Equal(t, "session_read_error", ue.Reason)
	require.ErrorContains(t, err, "table missing")
}

func TestChat_SessionWriteFailure(t *testing.T) {
	sessions := newFakeSessions()
	sessions.appendErr = errors.New("throttled")
	svc, err := NewChatService(&echoResponder{}, sessions, 0)
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), ChatInput{Message: "hi", SessionID: "s"})

	var ue *Error
	require.True(t, errors.As(err, &ue))
	require.Equal(t, "session_write_error", ue.Reason)
}

func TestChat_EngineIntegration(t *testing.T) {
	g := &fakeGenerator{reply: "generated"}
	engine := newTestEngine(t, &fakeRetriever{}, g)
	sessions := newFakeSessions()
	svc, err := NewChatService(engine, sessions, 0)
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), ChatInput{Message: "Any plans for Mars?", SessionID: "s"})
	require.NoError(t, err)
	_, err = svc.Chat(context.Background(), ChatInput{Message: "And for Venus?", SessionID: "s"})
	require.NoError(t, err)

	require.Len(t, g.prompts, 2)
	require.Contains(t, g.prompts[1], "User: Any plans for Mars?\nAssistant: generated\n")
	require.Len(t, sessions.turns["s"], 4)
}
