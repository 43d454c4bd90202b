// Package memory is the rolling per-conversation message window. Eviction of
// turns older than the retention window happens lazily on read; there is no
// background sweep.
package memory

import (
	"context"
	"time"

	"github.com/agendapet/agendapet/libs/db"
	"github.com/agendapet/agendapet/libs/petshop"
)

const retention = 24 * time.Hour

type Store struct {
	pool *db.Pool
}

func NewStore(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Append(ctx context.Context, tenantID, contact, role, text string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversation_messages (tenant_id, contact, role, content)
		VALUES ($1, $2, $3, $4)
	`, tenantID, contact, role, text)
	return err
}

// Recent purges expired turns for the conversation and returns the newest
// turns in chronological order.
func (s *Store) Recent(ctx context.Context, tenantID, contact string, limit int) ([]petshop.ConversationTurn, error) {
	if limit <= 0 {
		limit = 20
	}

	_, err := s.pool.Exec(ctx, `
		DELETE FROM conversation_messages
		WHERE tenant_id = $1 AND contact = $2 AND created_at < $3
	`, tenantID, contact, time.Now().Add(-retention))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT role, content, created_at
		FROM conversation_messages
		WHERE tenant_id = $1 AND contact = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, tenantID, contact, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []petshop.ConversationTurn
	for rows.Next() {
		var t petshop.ConversationTurn
		if err := rows.Scan(&t.Role, &t.Text, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	// Newest-first from the query; callers want append order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
