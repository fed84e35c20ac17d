package web

import (
	"net/http"
	"strconv"

	"github.com/JonMunkholm/catalogdesk/internal/review"
	"github.com/JonMunkholm/catalogdesk/internal/web/views"
)

type templateBody struct {
	Text      string `json:"text"`
	PostTitle string `json:"postTitle,omitempty"`
}

func (s *Server) readTemplateBody(w http.ResponseWriter, r *http.Request) (templateBody, error) {
	var body templateBody
	if isJSONBody(r) {
		err := decodeJSON(w, r, &body)
		return body, err
	}
	body.Text = r.FormValue("text")
	body.PostTitle = r.FormValue("postTitle")
	return body, nil
}

func (s *Server) handleTemplatePage(w http.ResponseWriter, r *http.Request) {
	text, err := s.service.Template(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	preview, err := s.service.PreviewTemplate(r.Context(), text, "")
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	_ = views.TemplatePage(views.TemplateParams{
		Text:         text,
		Preview:      preview,
		Placeholders: review.Placeholders(text),
		Selected:     s.service.Selection().Count,
	}).Render(r.Context(), w)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	text, err := s.service.Template(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"text":         text,
		"isDefault":    text == review.DefaultTemplate,
		"placeholders": review.Placeholders(text),
	})
}

func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	body, err := s.readTemplateBody(w, r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := s.service.SaveTemplate(r.Context(), body.Text); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if isHTMX(r) {
		_ = views.Notice("Template saved").Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": body.Text})
}

func (s *Server) handleResetTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ResetTemplate(r.Context()); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if isHTMX(r) {
		w.Header().Set("HX-Refresh", "true")
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": review.DefaultTemplate})
}

// handleTemplatePreview renders the posted text (or the saved template)
// against the selected products: JSON under /api, a fragment otherwise.
func (s *Server) handleTemplatePreview(w http.ResponseWriter, r *http.Request) {
	body, err := s.readTemplateBody(w, r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	out, err := s.service.PreviewTemplate(r.Context(), body.Text, body.PostTitle)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]string{"rendered": out})
		return
	}
	_ = views.TemplatePreview(out).Render(r.Context(), w)
}

// handleAuditLog returns the newest entries; ?limit= caps the count
// (default 100).
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.AuditLog(r.Context(), limitParam(r, 100))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAuditLogPage(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.AuditLog(r.Context(), limitParam(r, 200))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	_ = views.AuditLogPage(entries).Render(r.Context(), w)
}

func limitParam(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 1 {
		return def
	}
	return min(n, 1000)
}
