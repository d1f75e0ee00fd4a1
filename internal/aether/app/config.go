package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/bdobrica/aether/internal/aether/chat"
	"github.com/bdobrica/aether/internal/aether/llm"
)

const (
	// EnvPrefix is the prefix of configuration environment variables.
	// A double underscore separates nesting levels:
	// AETHER_LLM__BASE_URL -> llm.base_url.
	EnvPrefix = "AETHER_"
	delimiter = "."
)

// Config is the boot configuration.
type Config struct {
	DatabasePath string        `koanf:"database_path" validate:"required"`
	HTTPAddr     string        `koanf:"http_addr" validate:"required"`
	Log          LogConfig     `koanf:"log"`
	LLM          LLMConfig     `koanf:"llm"`
	Chat         ChatConfig    `koanf:"chat"`
	Metrics      MetricsConfig `koanf:"metrics"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// LLMConfig is the boot value of the completion endpoint. Runtime settings
// stored in the database take precedence.
type LLMConfig struct {
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`
}

// ChatConfig tunes the conversation engine.
type ChatConfig struct {
	HistoryWindow int           `koanf:"history_window" validate:"gte=1,lte=200"`
	Temperature   float64       `koanf:"temperature" validate:"gte=0,lte=2"`
	MinChunkDelay time.Duration `koanf:"min_chunk_delay" validate:"gte=0"`
	MaxChunkDelay time.Duration `koanf:"max_chunk_delay" validate:"gtefield=MinChunkDelay"`
	PerCharDelay  time.Duration `koanf:"per_char_delay" validate:"gte=0"`
	ChunkPause    time.Duration `koanf:"chunk_pause" validate:"gte=0"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Engine converts the chat section into an engine configuration.
func (c ChatConfig) Engine() chat.Config {
	return chat.Config{
		HistoryWindow: c.HistoryWindow,
		Temperature:   chat.Temperature(c.Temperature),
		MinChunkDelay: c.MinChunkDelay,
		MaxChunkDelay: c.MaxChunkDelay,
		PerCharDelay:  c.PerCharDelay,
		ChunkPause:    c.ChunkPause,
	}
}

// Client converts the llm section into a client configuration.
func (c LLMConfig) Client() llm.Config {
	return llm.Config{BaseURL: c.BaseURL, APIKey: c.APIKey, Model: c.Model, Timeout: c.Timeout}
}

func defaults() map[string]any {
	return map[string]any{
		"database_path":        "aether.db",
		"http_addr":            "127.0.0.1:8787",
		"log.level":            "info",
		"log.format":           "text",
		"llm.base_url":         "",
		"llm.api_key":          "",
		"llm.model":            "gpt-4o-mini",
		"llm.timeout":          "0s",
		"chat.history_window":  20,
		"chat.temperature":     0.7,
		"chat.min_chunk_delay": "500ms",
		"chat.max_chunk_delay": "2s",
		"chat.per_char_delay":  "50ms",
		"chat.chunk_pause":     "400ms",
		"metrics.enabled":      true,
	}
}

// LoadConfig merges defaults, the optional file at path (YAML or JSON) and
// AETHER_* environment variables, in that order, and validates the result.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(delimiter)

	if err := k.Load(confmap.Provider(defaults(), delimiter), nil); err != nil {
		return nil, fmt.Errorf("app: load defaults: %w", err)
	}

	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("app: unsupported config file format %q", filepath.Ext(path))
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("app: config file: %w", err)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("app: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, delimiter, envKey), nil); err != nil {
		return nil, fmt.Errorf("app: load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("app: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps AETHER_CHAT__HISTORY_WINDOW to chat.history_window.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", delimiter)
}

var validate = validator.New()

// Validate checks field constraints and reports every violation.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("app: validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("app: invalid configuration:\n  - %s", strings.Join(msgs, "\n  - "))
}
