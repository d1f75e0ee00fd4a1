package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bdobrica/aether/internal/aether/memory"
)

// ListFragments returns a character's fragments in insertion order.
func (s *Store) ListFragments(ctx context.Context, charID string) ([]memory.Fragment, error) {
	if err := s.requireCharacter(ctx, s.db, charID); err != nil {
		return nil, err
	}
	return s.listFragments(ctx, charID)
}

func (s *Store) listFragments(ctx context.Context, charID string) ([]memory.Fragment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, summary, mood
		FROM memory_fragments
		WHERE character_id = ?
		ORDER BY position
	`, charID)
	if err != nil {
		return nil, fmt.Errorf("store: list fragments: %w", err)
	}
	defer rows.Close()

	out := []memory.Fragment{}
	for rows.Next() {
		var f memory.Fragment
		if err := rows.Scan(&f.ID, &f.Date, &f.Summary, &f.Mood); err != nil {
			return nil, fmt.Errorf("store: scan fragment: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate fragments: %w", err)
	}
	return out, nil
}

// AppendFragments adds fragments after the existing ones. Existing fragments
// are never replaced.
func (s *Store) AppendFragments(ctx context.Context, charID string, fragments []memory.Fragment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin append fragments: %w", err)
	}
	defer tx.Rollback()

	if err := s.requireCharacter(ctx, tx, charID); err != nil {
		return err
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM memory_fragments WHERE character_id = ?`, charID,
	).Scan(&next); err != nil {
		return fmt.Errorf("store: next fragment position: %w", err)
	}

	if err := insertFragments(ctx, tx, charID, next, fragments); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit append fragments: %w", err)
	}
	return nil
}

// ReplaceFragments swaps a character's whole fragment list. Refined
// summaries are kept: they are only ever regenerated on request.
func (s *Store) ReplaceFragments(ctx context.Context, charID string, fragments []memory.Fragment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin replace fragments: %w", err)
	}
	defer tx.Rollback()

	if err := s.requireCharacter(ctx, tx, charID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_fragments WHERE character_id = ?`, charID); err != nil {
		return fmt.Errorf("store: clear fragments: %w", err)
	}
	if err := insertFragments(ctx, tx, charID, 0, fragments); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit replace fragments: %w", err)
	}
	return nil
}

func insertFragments(ctx context.Context, q queryer, charID string, position int, fragments []memory.Fragment) error {
	for i, f := range fragments {
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO memory_fragments (character_id, id, position, date, summary, mood)
			VALUES (?, ?, ?, ?, ?, ?)
		`, charID, f.ID, position+i, f.Date, f.Summary, f.Mood)
		if err != nil {
			return fmt.Errorf("store: insert fragment %s: %w", f.ID, err)
		}
	}
	return nil
}

// GetRefinedIndex returns a character's refined summaries keyed by
// "YYYY-MM".
func (s *Store) GetRefinedIndex(ctx context.Context, charID string) (memory.RefinedIndex, error) {
	if err := s.requireCharacter(ctx, s.db, charID); err != nil {
		return nil, err
	}
	return s.refinedIndex(ctx, charID)
}

func (s *Store) refinedIndex(ctx context.Context, charID string) (memory.RefinedIndex, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT month_key, summary FROM refined_memories WHERE character_id = ?
	`, charID)
	if err != nil {
		return nil, fmt.Errorf("store: list refined: %w", err)
	}
	defer rows.Close()

	index := memory.RefinedIndex{}
	for rows.Next() {
		var key, summary string
		if err := rows.Scan(&key, &summary); err != nil {
			return nil, fmt.Errorf("store: scan refined: %w", err)
		}
		index[key] = summary
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate refined: %w", err)
	}
	return index, nil
}

// SetRefinedEntry stores summary under key, replacing any earlier value.
func (s *Store) SetRefinedEntry(ctx context.Context, charID, key, summary string) error {
	if err := s.requireCharacter(ctx, s.db, charID); err != nil {
		return err
	}
	return upsertRefined(ctx, s.db, charID, key, summary, s.timestamp())
}

func upsertRefined(ctx context.Context, q queryer, charID, key, summary, now string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO refined_memories (character_id, month_key, summary, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(character_id, month_key) DO UPDATE SET
			summary    = excluded.summary,
			updated_at = excluded.updated_at
	`, charID, key, summary, now)
	if err != nil {
		return fmt.Errorf("store: set refined %s: %w", key, err)
	}
	return nil
}
