package web

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/catalogdesk/internal/bulk"
	"github.com/JonMunkholm/catalogdesk/internal/logging"
	"github.com/JonMunkholm/catalogdesk/internal/sheet"
)

// handleExport streams the selected products as a download, xlsx unless
// ?format=csv. The file is built in memory first so a failure never sends
// half a spreadsheet.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := sheet.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	var buf bytes.Buffer
	logger := logging.FromContext(r.Context())

	res := s.service.ExportSelected(r.Context(), &buf, format, func(current, total int) {
		if current == total || current%500 == 0 {
			logger.Debug("export progress", "current", current, "total", total)
		}
	})
	if !res.Success {
		s.respondResult(w, r, res)
		return
	}

	name := res.FileName
	if name == "" {
		name = bulk.ExportFileName(s.now(), format)
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Export-Count", strconv.Itoa(res.Count))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Warn("export download interrupted", "error", err)
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.respondResult(w, r, s.service.DeleteSelected(r.Context()))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	s.respondResult(w, r, s.service.SaveSelected(r.Context()))
}

func (s *Server) handleSaved(w http.ResponseWriter, r *http.Request) {
	products, err := s.service.Saved(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": products, "count": len(products)})
}

// handleImport parses the multipart "file". With ?persist=true the parsed
// records are also added to the catalog; otherwise they are only returned.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Server.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		// A missing body is reported the same way as a missing file.
		s.respondResult(w, r, s.service.Import(r.Context(), "", nil))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondResult(w, r, s.service.Import(r.Context(), "", nil))
		return
	}
	defer file.Close()

	res := s.service.Import(r.Context(), header.Filename, file)
	if !res.Success || r.URL.Query().Get("persist") != "true" {
		s.respondResult(w, r, res)
		return
	}

	persisted := s.service.Persist(r.Context(), res.Records)
	if !persisted.Success {
		s.respondResult(w, r, persisted)
		return
	}
	res.Count = persisted.Count
	s.respondResult(w, r, res)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.JobStatus())
}
