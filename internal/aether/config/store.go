// Package config holds the runtime settings that can change while aether is
// running: the completion endpoint URL, model and API key. They live in the
// config table of the application database and are layered over the boot
// configuration loaded at startup.
package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/bdobrica/aether/internal/aether/store"
)

// Runtime setting keys.
const (
	KeyBaseURL = "api.base_url"
	KeyModel   = "api.model"
	KeyAPIKey  = "api.api_key"
)

// Keys lists every runtime setting, sorted.
var Keys = []string{KeyAPIKey, KeyBaseURL, KeyModel}

var (
	// ErrNotFound is returned by Get for a known setting that is not stored.
	ErrNotFound = errors.New("config: setting not stored")

	// ErrUnknownKey is returned for a key aether does not read.
	ErrUnknownKey = errors.New("config: unknown setting")

	// ErrInvalidValue is returned by Set when a value fails its key's check.
	ErrInvalidValue = errors.New("config: invalid setting value")
)

// Store reads and writes runtime settings. Only Keys are accepted; an empty
// value clears the setting so the boot value applies again. Implementations
// must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// List returns the stored settings; an empty map when there are none.
	List(ctx context.Context) (map[string]string, error)
}

// Validate checks value against the rules of key. Empty values are valid
// for every known key.
func Validate(key, value string) error {
	if !slices.Contains(Keys, key) {
		return fmt.Errorf("%w: %q (known: %s)", ErrUnknownKey, key, strings.Join(Keys, ", "))
	}
	value = strings.TrimSpace(value)
	if value == "" || key != KeyBaseURL {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s must be an http(s) URL, got %q", ErrInvalidValue, key, value)
	}
	return nil
}

type sqliteStore struct {
	db *sql.DB
}

// New returns the settings stored in the application database.
func New(db *store.Store) Store {
	return &sqliteStore{db: db.DB()}
}

func (s *sqliteStore) Get(ctx context.Context, key string) (string, error) {
	if err := Validate(key, ""); err != nil {
		return "", err
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	case err != nil:
		return "", fmt.Errorf("config: get %s: %w", key, err)
	}
	return value, nil
}

func (s *sqliteStore) Set(ctx context.Context, key, value string) error {
	value = strings.TrimSpace(value)
	if err := Validate(key, value); err != nil {
		return err
	}
	if value == "" {
		return s.Delete(ctx, key)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("config: set %s: %w", key, err)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	if err := Validate(key, ""); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM config WHERE key = ?`, key); err != nil {
		return fmt.Errorf("config: clear %s: %w", key, err)
	}
	return nil
}

// List skips rows for keys this version no longer reads.
func (s *sqliteStore) List(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("config: list: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string, len(Keys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("config: list: %w", err)
		}
		if slices.Contains(Keys, k) {
			settings[k] = v
		}
	}
	return settings, rows.Err()
}
