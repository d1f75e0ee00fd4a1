package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bdobrica/aether/internal/aether/character"
)

func (s *Server) listCharacters(w http.ResponseWriter, r *http.Request) {
	list, err := s.Store.ListCharacters(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*character.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"characters": list})
}

func (s *Server) createCharacter(w http.ResponseWriter, r *http.Request) {
	var p character.Profile
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Store.CreateCharacter(r.Context(), &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("api: character created", "character_id", p.ID, "fragments", len(p.Memories))
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getCharacter(w http.ResponseWriter, r *http.Request) {
	p, err := s.Store.GetCharacter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// updateCharacter rewrites identity fields. When the body carries a
// "memories" array the fragment list is replaced as well.
func (s *Server) updateCharacter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var p character.Profile
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	p.ID = id
	if err := s.Store.UpdateCharacter(r.Context(), &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	if p.Memories != nil {
		p.Normalize()
		if err := s.Store.ReplaceFragments(r.Context(), id, p.Memories); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	updated, err := s.Store.GetCharacter(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteCharacter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Store.DeleteCharacter(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("api: character deleted", "character_id", id)
	w.WriteHeader(http.StatusNoContent)
}
