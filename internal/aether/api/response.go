package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/bdobrica/aether/internal/aether/character"
	"github.com/bdobrica/aether/internal/aether/chat"
	"github.com/bdobrica/aether/internal/aether/config"
	"github.com/bdobrica/aether/internal/aether/llm"
	"github.com/bdobrica/aether/internal/aether/memory"
	"github.com/bdobrica/aether/internal/aether/store"
)

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encode response", "err", err)
	}
}

// statusFor maps the error taxonomy onto HTTP status codes and error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrUnknownType),
		errors.Is(err, memory.ErrEmptyMonth),
		errors.Is(err, memory.ErrEmptyInput),
		errors.Is(err, character.ErrNameRequired),
		errors.Is(err, config.ErrUnknownKey),
		errors.Is(err, config.ErrInvalidValue):
		return http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, chat.ErrCycleInFlight):
		return http.StatusConflict, "CYCLE_IN_FLIGHT"
	case errors.Is(err, store.ErrExists):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, llm.ErrParse):
		return http.StatusUnprocessableEntity, "UNPARSEABLE_COMPLETION"
	case errors.Is(err, llm.ErrTransport):
		return http.StatusBadGateway, "UPSTREAM_FAILURE"
	case errors.Is(err, llm.ErrConfiguration):
		return http.StatusServiceUnavailable, "NOT_CONFIGURED"
	default:
		return http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("api: request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:      code,
		Message:   err.Error(),
		RequestID: middleware.GetReqID(r.Context()),
	}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
