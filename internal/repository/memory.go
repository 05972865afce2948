package repository

import (
	"context"
	"sync"

	"portfolio-chat/internal/domain"
)

// MemoryStore keeps sessions in process memory. Sessions are never evicted,
// so memory grows with the number of distinct session ids.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]domain.ChatMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]domain.ChatMessage)}
}

// History returns a copy of the session's turns; an unknown session has none.
func (s *MemoryStore) History(_ context.Context, sessionID string) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.sessions[sessionID]
	out := make([]domain.ChatMessage, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, turns ...domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], turns...)
	return nil
}

// Len returns the number of sessions held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
