package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bdobrica/aether/internal/aether/chat"
)

const defaultMessageLimit = 100

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest))
			return
		}
		limit = n
	}

	msgs, err := s.Store.ListRecentMessages(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type postMessageRequest struct {
	Content  string         `json:"content"`
	Type     chat.Type      `json:"type"`
	Metadata map[string]any `json:"metadata"`
	// Reply starts a reply cycle after appending. Without it the message is
	// only logged, so several messages can be queued before one reply.
	Reply bool `json:"reply"`
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req postMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in := chat.Input{Content: req.Content, Type: req.Type, Metadata: req.Metadata}

	if !req.Reply {
		if err := in.Normalize(); err != nil {
			s.writeError(w, r, err)
			return
		}
		msg, err := s.Store.AppendMessage(r.Context(), id, chat.RoleUser, in.Type, in.Content, in.Metadata)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.Hub.MessageAppended(msg)
		writeJSON(w, http.StatusCreated, msg)
		return
	}

	// The cycle outlives the request.
	err := s.Engine.SendAsync(context.WithoutCancel(r.Context()), id, in, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.Engine.Status(id))
}

func (s *Server) regenerate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Engine.RegenerateAsync(context.WithoutCancel(r.Context()), id, nil); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.Engine.Status(id))
}

func (s *Server) clearMessages(w http.ResponseWriter, r *http.Request) {
	n, err := s.Store.ClearMessages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Store.GetCharacter(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.Status(id))
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Store.GetCharacter(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Hub.serve(w, r, id, s.Engine.Status(id))
}
