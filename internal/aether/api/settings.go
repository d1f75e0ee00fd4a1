package api

import (
	"net/http"

	"github.com/bdobrica/aether/common/redact"
	"github.com/bdobrica/aether/internal/aether/config"
)

// apiSettingsView never carries the key itself.
type apiSettingsView struct {
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	APIKeySet  bool   `json:"api_key_set"`
	APIKeyHint string `json:"api_key_hint,omitempty"`
}

func (s *Server) apiSettingsView() apiSettingsView {
	cfg := s.Endpoint.Config()
	return apiSettingsView{
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		APIKeySet:  cfg.APIKey != "",
		APIKeyHint: redact.Mask(cfg.APIKey),
	}
}

func (s *Server) getAPISettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.apiSettingsView())
}

// putAPISettings stores the given fields and reconfigures the live client.
// Omitted or empty fields keep their current value.
func (s *Server) putAPISettings(w http.ResponseWriter, r *http.Request) {
	var in config.APISettings
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := config.SaveAPI(r.Context(), s.Settings, in); err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg, err := config.ResolveAPI(r.Context(), s.Settings, s.BootLLM)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Endpoint.SetConfig(cfg)
	s.logger.Info("api: endpoint settings updated", "base_url", cfg.BaseURL, "model", cfg.Model)

	writeJSON(w, http.StatusOK, s.apiSettingsView())
}
