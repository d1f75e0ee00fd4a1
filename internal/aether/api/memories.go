package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bdobrica/aether/internal/aether/memory"
)

type treeResponse struct {
	Tree    memory.Tree         `json:"tree"`
	Stats   memory.Stats        `json:"stats"`
	Refined memory.RefinedIndex `json:"refined"`
}

func (s *Server) memoryTree(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tree, stats, err := s.Archivist.Tree(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	refined, err := s.Store.GetRefinedIndex(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tree == nil {
		tree = memory.Tree{}
	}
	writeJSON(w, http.StatusOK, treeResponse{Tree: tree, Stats: stats, Refined: refined})
}

type refineRequest struct {
	Year  string `json:"year"`
	Month string `json:"month"`
}

func (s *Server) refineMonth(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Year) == "" || strings.TrimSpace(req.Month) == "" {
		s.writeError(w, r, fmt.Errorf("%w: year and month are required", errBadRequest))
		return
	}

	key, summary, err := s.Archivist.Refine(r.Context(), chi.URLParam(r, "id"), req.Year, req.Month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "summary": summary})
}

type importRequest struct {
	Text string `json:"text"`
}

func (s *Server) importMemories(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	fragments, err := s.Archivist.Import(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"imported": fragments})
}

func (s *Server) exportMemories(w http.ResponseWriter, r *http.Request) {
	p, err := s.Store.GetCharacter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	now := time.Now()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s_memories_%s.txt"`, p.ID, now.Format("20060102")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(memory.ExportText(p.Name, p.Memories, p.RefinedMemories, now)))
}
