// Package history persists conversation turns so follow-up requests can carry
// prior context. The orchestrator and session layers depend only on the Store
// interface; the SQLite implementation is the bundled default.
package history

import (
	"context"
	"time"
)

// Turn is one utterance in a conversation: either the user's prompt or the
// merged assistant answer.
type Turn struct {
	ConversationID string    `json:"conversation_id"`
	Identity       string    `json:"identity"`
	Role           string    `json:"role"`
	Text           string    `json:"text"`
	Provider       string    `json:"provider,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store reads and writes conversation turns.
type Store interface {
	// AppendTurn stores one turn. A zero CreatedAt is stamped by the store.
	AppendTurn(ctx context.Context, turn Turn) error

	// ReadTurns returns the most recent turns of a conversation in
	// chronological order, capped at limit (non-positive = no cap).
	ReadTurns(ctx context.Context, conversationID string, limit int) ([]Turn, error)

	// Close releases resources.
	Close() error
}
