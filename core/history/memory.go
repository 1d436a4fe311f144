package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a concurrency-safe in-memory Store. It backs tests,
// examples, and deployments that do not need turns to survive a restart.
// RWMutex-guarded; efficient for the read-heavy history-request pattern.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

// NewMemoryStore returns a new, empty [MemoryStore] ready for immediate use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		turns: make(map[string][]Turn),
	}
}

var _ Store = (*MemoryStore)(nil)

// AppendTurn stores a copy of turn at the end of its conversation.
// A zero CreatedAt is stamped with the current time.
func (s *MemoryStore) AppendTurn(_ context.Context, turn Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.turns[turn.ConversationID] = append(s.turns[turn.ConversationID], turn)
	s.mu.Unlock()

	return nil
}

// ReadTurns returns up to the last limit turns of a conversation in
// chronological order, as a new, independent slice. A non-positive limit
// returns all turns. The returned error is always nil.
func (s *MemoryStore) ReadTurns(_ context.Context, conversationID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.turns[conversationID]
	if len(stored) == 0 {
		return []Turn{}, nil
	}

	start := 0
	if limit > 0 && limit < len(stored) {
		start = len(stored) - limit
	}

	out := make([]Turn, len(stored)-start)
	copy(out, stored[start:])

	return out, nil
}

// Clear removes every turn of a conversation while retaining capacity for
// the remaining conversations.
func (s *MemoryStore) Clear(conversationID string) {
	s.mu.Lock()
	delete(s.turns, conversationID)
	s.mu.Unlock()
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
