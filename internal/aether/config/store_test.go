package config_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/bdobrica/aether/internal/aether/config"
	"github.com/bdobrica/aether/internal/aether/llm"
	appstore "github.com/bdobrica/aether/internal/aether/store"
)

// newTestStore creates a temporary SQLite database and returns a config.Store
// backed by it.
func newTestStore(t *testing.T) config.Store {
	t.Helper()
	_, store := newTestDB(t)
	return store
}

func newTestDB(t *testing.T) (*appstore.Store, config.Store) {
	t.Helper()
	s, err := appstore.New(filepath.Join(t.TempDir(), "aether-config-test.db"))
	if err != nil {
		t.Fatalf("appstore.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, config.New(s)
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), config.KeyBaseURL)
	if !errors.Is(err, config.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestSetGetOverwriteDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, config.KeyModel, "gpt-4o"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, config.KeyModel, "deepseek-chat"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get(ctx, config.KeyModel)
	if err != nil || got != "deepseek-chat" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if err := store.Delete(ctx, config.KeyModel); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, config.KeyModel); err != nil {
		t.Fatalf("Delete of absent key: %v", err)
	}
	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty map, got %v", all)
	}
}

func TestUnknownKeysRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "api.colour", "blue"); !errors.Is(err, config.ErrUnknownKey) {
		t.Errorf("Set: expected ErrUnknownKey, got %v", err)
	}
	if _, err := store.Get(ctx, "api.colour"); !errors.Is(err, config.ErrUnknownKey) {
		t.Errorf("Get: expected ErrUnknownKey, got %v", err)
	}
	if err := store.Delete(ctx, "api.colour"); !errors.Is(err, config.ErrUnknownKey) {
		t.Errorf("Delete: expected ErrUnknownKey, got %v", err)
	}
}

func TestSet_ValidatesBaseURL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, bad := range []string{"ftp://example.com", "example.com/v1", "https://"} {
		if err := store.Set(ctx, config.KeyBaseURL, bad); !errors.Is(err, config.ErrInvalidValue) {
			t.Errorf("Set(%q): expected ErrInvalidValue, got %v", bad, err)
		}
	}
	if err := store.Set(ctx, config.KeyBaseURL, " https://api.example.com/v1 "); err != nil {
		t.Fatalf("Set valid URL: %v", err)
	}
	got, _ := store.Get(ctx, config.KeyBaseURL)
	if got != "https://api.example.com/v1" {
		t.Errorf("stored value not trimmed: %q", got)
	}
}

func TestSet_EmptyValueClears(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, config.KeyModel, "gpt-4o"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, config.KeyModel, "  "); err != nil {
		t.Fatalf("Set empty: %v", err)
	}
	if _, err := store.Get(ctx, config.KeyModel); !errors.Is(err, config.ErrNotFound) {
		t.Errorf("expected the setting to be cleared, got %v", err)
	}
}

func TestList_SkipsRetiredKeys(t *testing.T) {
	db, store := newTestDB(t)
	ctx := context.Background()

	if _, err := db.DB().ExecContext(ctx,
		`INSERT INTO config (key, value, updated_at) VALUES ('api.legacy', 'x', '2024-01-01T00:00:00Z')`); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, config.KeyModel, "gpt-4o"); err != nil {
		t.Fatal(err)
	}
	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[config.KeyModel] != "gpt-4o" {
		t.Errorf("List = %v", all)
	}
}

func TestSaveAPI_ValidatesBeforeWriting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := config.SaveAPI(ctx, store, config.APISettings{BaseURL: "nope", Model: "gpt-4o"})
	if !errors.Is(err, config.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if _, err := store.Get(ctx, config.KeyModel); !errors.Is(err, config.ErrNotFound) {
		t.Errorf("model written despite invalid base URL: %v", err)
	}
}

func TestResolveAPI_OverlaysBoot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boot := llm.Config{BaseURL: "https://boot.example/v1", Model: "boot-model", APIKey: "boot-key"}

	got, err := config.ResolveAPI(ctx, store, boot)
	if err != nil {
		t.Fatalf("ResolveAPI: %v", err)
	}
	if got != boot {
		t.Errorf("empty store should keep boot config, got %+v", got)
	}

	if err := config.SaveAPI(ctx, store, config.APISettings{Model: "runtime-model", APIKey: "sk-runtime"}); err != nil {
		t.Fatalf("SaveAPI: %v", err)
	}
	got, err = config.ResolveAPI(ctx, store, boot)
	if err != nil {
		t.Fatalf("ResolveAPI: %v", err)
	}
	want := llm.Config{BaseURL: "https://boot.example/v1", Model: "runtime-model", APIKey: "sk-runtime"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSaveAPI_EmptyKeyKeepsStored(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	config.SaveAPI(ctx, store, config.APISettings{APIKey: "sk-first"})
	config.SaveAPI(ctx, store, config.APISettings{BaseURL: "https://x.example/v1"})

	key, err := store.Get(ctx, config.KeyAPIKey)
	if err != nil || key != "sk-first" {
		t.Errorf("api key = %q, %v", key, err)
	}
}
