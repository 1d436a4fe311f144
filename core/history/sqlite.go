package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store with a SQLite database. The pure-Go driver
// keeps the module cgo-free.
type SQLiteStore struct {
	db *sql.DB
}

const createTurnsTable = `
CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	identity TEXT NOT NULL,
	role TEXT NOT NULL,
	text TEXT NOT NULL,
	provider TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_turns_conversation_time ON turns(conversation_id, created_at);
`

// NewSQLiteStore opens (or creates) the database at dbPath and runs
// auto-migration. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec(createTurnsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// AppendTurn stores one turn, stamping a zero CreatedAt with the current UTC time.
func (s *SQLiteStore) AppendTurn(ctx context.Context, turn Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (conversation_id, identity, role, text, provider, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ConversationID, turn.Identity, turn.Role, turn.Text, turn.Provider, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}

	return nil
}

// ReadTurns returns the conversation's most recent turns in chronological
// order. With a positive limit only the newest limit turns are returned.
func (s *SQLiteStore) ReadTurns(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	query := `SELECT conversation_id, identity, role, text, provider, created_at
	          FROM turns WHERE conversation_id = ? ORDER BY id DESC`
	args := []any{conversationID}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var turn Turn
		if err := rows.Scan(&turn.ConversationID, &turn.Identity, &turn.Role, &turn.Text, &turn.Provider, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read turns: %w", err)
	}

	// Query returned newest-first; flip to chronological.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
