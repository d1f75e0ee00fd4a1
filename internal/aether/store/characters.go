package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bdobrica/aether/internal/aether/character"
)

// CreateCharacter inserts a profile together with its fragments and refined
// index. The profile is normalised (ids filled in) before insertion.
func (s *Store) CreateCharacter(ctx context.Context, p *character.Profile) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin create character: %w", err)
	}
	defer tx.Rollback()

	now := s.timestamp()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO characters (id, name, avatar, description, system_prompt, bubble_style, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Avatar, p.Description, p.SystemPrompt, p.BubbleStyle, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: character %s", ErrExists, p.ID)
		}
		return fmt.Errorf("store: create character: %w", err)
	}

	if err := insertFragments(ctx, tx, p.ID, 0, p.Memories); err != nil {
		return err
	}
	for _, key := range p.RefinedMemories.Keys() {
		if err := upsertRefined(ctx, tx, p.ID, key, p.RefinedMemories[key], now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit create character: %w", err)
	}
	return nil
}

// GetCharacter returns a profile with its fragments (insertion order) and
// refined index.
func (s *Store) GetCharacter(ctx context.Context, id string) (*character.Profile, error) {
	p := &character.Profile{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, avatar, description, system_prompt, bubble_style
		FROM characters
		WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Avatar, &p.Description, &p.SystemPrompt, &p.BubbleStyle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: character %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get character: %w", err)
	}

	if p.Memories, err = s.listFragments(ctx, id); err != nil {
		return nil, err
	}
	if p.RefinedMemories, err = s.refinedIndex(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

// ListCharacters returns every character without its memories, oldest
// first.
func (s *Store) ListCharacters(ctx context.Context) ([]*character.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, avatar, description, system_prompt, bubble_style
		FROM characters
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list characters: %w", err)
	}
	defer rows.Close()

	var out []*character.Profile
	for rows.Next() {
		p := &character.Profile{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Avatar, &p.Description, &p.SystemPrompt, &p.BubbleStyle); err != nil {
			return nil, fmt.Errorf("store: scan character: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate characters: %w", err)
	}
	return out, nil
}

// UpdateCharacter rewrites a profile's identity fields. Memories are left
// alone; use ReplaceFragments for those.
func (s *Store) UpdateCharacter(ctx context.Context, p *character.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE characters
		SET name = ?, avatar = ?, description = ?, system_prompt = ?, bubble_style = ?, updated_at = ?
		WHERE id = ?
	`, strings.TrimSpace(p.Name), p.Avatar, strings.TrimSpace(p.Description), p.SystemPrompt, p.BubbleStyle, s.timestamp(), p.ID)
	if err != nil {
		return fmt.Errorf("store: update character: %w", err)
	}
	return requireRow(res, p.ID)
}

// DeleteCharacter removes a character and, by cascade, its memories and
// messages.
func (s *Store) DeleteCharacter(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM characters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete character: %w", err)
	}
	return requireRow(res, id)
}

func (s *Store) requireCharacter(ctx context.Context, q queryer, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM characters WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: character %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("store: look up character: %w", err)
	}
	return nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: character %s", ErrNotFound, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
