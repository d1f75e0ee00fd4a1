package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bdobrica/aether/internal/aether/chat"
)

// AppendMessage adds a message to a character's log and returns it with its
// id and timestamp.
func (s *Store) AppendMessage(ctx context.Context, charID string, role chat.Role, typ chat.Type, content string, metadata map[string]any) (chat.Message, error) {
	if typ == "" {
		typ = chat.TypeText
	}
	var meta sql.NullString
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return chat.Message{}, fmt.Errorf("store: encode metadata: %w", err)
		}
		meta = sql.NullString{String: string(raw), Valid: true}
	}

	if err := s.requireCharacter(ctx, s.db, charID); err != nil {
		return chat.Message{}, err
	}

	ts := s.now().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (character_id, role, type, content, metadata, timestamp_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`, charID, string(role), string(typ), content, meta, ts)
	if err != nil {
		return chat.Message{}, fmt.Errorf("store: append message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return chat.Message{}, fmt.Errorf("store: message id: %w", err)
	}

	return chat.Message{
		ID:        id,
		CharID:    charID,
		Role:      role,
		Type:      typ,
		Content:   content,
		Metadata:  metadata,
		Timestamp: time.UnixMilli(ts),
	}, nil
}

// ListRecentMessages returns at most n of the latest messages, oldest first.
// n <= 0 returns the whole log.
func (s *Store) ListRecentMessages(ctx context.Context, charID string, n int) ([]chat.Message, error) {
	if n <= 0 {
		return s.ListMessages(ctx, charID)
	}
	return s.queryMessages(ctx, `
		SELECT id, character_id, role, type, content, metadata, timestamp_ms FROM (
			SELECT * FROM messages WHERE character_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id
	`, charID, n)
}

// ListMessages returns a character's whole log, oldest first.
func (s *Store) ListMessages(ctx context.Context, charID string) ([]chat.Message, error) {
	return s.queryMessages(ctx, `
		SELECT id, character_id, role, type, content, metadata, timestamp_ms
		FROM messages WHERE character_id = ? ORDER BY id
	`, charID)
}

// ClearMessages deletes a character's log and reports how many messages
// were removed.
func (s *Store) ClearMessages(ctx context.Context, charID string) (int64, error) {
	if err := s.requireCharacter(ctx, s.db, charID); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE character_id = ?`, charID)
	if err != nil {
		return 0, fmt.Errorf("store: clear messages: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) queryMessages(ctx context.Context, query, charID string, args ...any) ([]chat.Message, error) {
	if err := s.requireCharacter(ctx, s.db, charID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, append([]any{charID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	out := []chat.Message{}
	for rows.Next() {
		var (
			m           chat.Message
			role, typ   string
			meta        sql.NullString
			timestampMs int64
		)
		if err := rows.Scan(&m.ID, &m.CharID, &role, &typ, &m.Content, &meta, &timestampMs); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.Role, m.Type = chat.Role(role), chat.Type(typ)
		m.Timestamp = time.UnixMilli(timestampMs)
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &m.Metadata); err != nil {
				return nil, fmt.Errorf("store: decode metadata of message %d: %w", m.ID, err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate messages: %w", err)
	}
	return out, nil
}
