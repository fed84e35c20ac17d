package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/catalogdesk/internal/catalog"
	"github.com/JonMunkholm/catalogdesk/internal/core"
)

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Selection())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	selected, err := s.service.Toggle(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       id,
		"selected": selected,
		"count":    len(s.service.Selection().IDs),
	})
}

// filterFromRequest reads the filter from the query string or, for htmx
// posts that include the filter form, the body.
func filterFromRequest(r *http.Request) catalog.FilterSpec {
	if err := r.ParseForm(); err != nil {
		return catalog.ParseFilterSpec(r.URL.Query())
	}
	return catalog.ParseFilterSpec(r.Form)
}

func (s *Server) handleSelectVisible(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.SelectVisible(r.Context(), filterFromRequest(r))
	s.respondSelection(w, r, state, err)
}

func (s *Server) handleInvertVisible(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.InvertVisible(r.Context(), filterFromRequest(r))
	s.respondSelection(w, r, state, err)
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.ClearSelection(r.Context())
	s.respondSelection(w, r, state, err)
}

func (s *Server) respondSelection(w http.ResponseWriter, r *http.Request, state core.SelectionState, err error) {
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if isHTMX(r) {
		w.Header().Set("HX-Trigger", "catalogChanged")
	}
	writeJSON(w, http.StatusOK, state)
}

type columnsBody struct {
	Columns []string `json:"columns"`
}

func (s *Server) handleGetColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := s.service.Columns(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, columnsBody{Columns: cols})
}

func (s *Server) handleSaveColumns(w http.ResponseWriter, r *http.Request) {
	var body columnsBody
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &body); err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
	} else if err := r.ParseForm(); err == nil {
		body.Columns = r.PostForm["columns"]
	}

	cols, err := s.service.SaveColumns(r.Context(), body.Columns)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, columnsBody{Columns: cols})
}
