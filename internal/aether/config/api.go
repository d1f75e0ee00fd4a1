package config

import (
	"context"
	"errors"
	"strings"

	"github.com/bdobrica/aether/internal/aether/llm"
)

// APISettings is the runtime view of the endpoint configuration. Empty
// fields mean "keep the current value".
type APISettings struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key,omitempty"`
}

func (in APISettings) fields() map[string]string {
	return map[string]string{
		KeyBaseURL: in.BaseURL,
		KeyModel:   in.Model,
		KeyAPIKey:  in.APIKey,
	}
}

// ResolveAPI overlays the stored settings on boot and returns the result.
func ResolveAPI(ctx context.Context, s Store, boot llm.Config) (llm.Config, error) {
	cfg := boot
	for key, dst := range map[string]*string{
		KeyBaseURL: &cfg.BaseURL,
		KeyModel:   &cfg.Model,
		KeyAPIKey:  &cfg.APIKey,
	} {
		v, err := s.Get(ctx, key)
		if errors.Is(err, ErrNotFound) || (err == nil && v == "") {
			continue
		}
		if err != nil {
			return boot, err
		}
		*dst = v
	}
	return cfg, nil
}

// SaveAPI stores the non-empty fields of in. Every field is validated before
// anything is written. An empty APIKey leaves the stored key untouched so
// clients never need to echo it back.
func SaveAPI(ctx context.Context, s Store, in APISettings) error {
	fields := in.fields()
	for key, v := range fields {
		if err := Validate(key, v); err != nil {
			return err
		}
	}
	for _, key := range Keys {
		if strings.TrimSpace(fields[key]) == "" {
			continue
		}
		if err := s.Set(ctx, key, fields[key]); err != nil {
			return err
		}
	}
	return nil
}
