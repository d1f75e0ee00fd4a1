package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSecs    float64 `json:"uptime_seconds"`
	APIConfigured bool    `json:"api_configured"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Version:    s.Version,
		UptimeSecs: time.Since(s.startedAt).Seconds(),
	}
	if s.Endpoint != nil {
		cfg := s.Endpoint.Config()
		resp.APIConfigured = cfg.BaseURL != "" && cfg.APIKey != ""
	}
	writeJSON(w, http.StatusOK, resp)
}
