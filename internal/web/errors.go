package web

// Every failure leaves through respondError: the technical error is logged
// with the request id, and the client gets the mapped user message as JSON,
// an htmx fragment, or plain text depending on the request.

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/catalogdesk/internal/bulk"
	"github.com/JonMunkholm/catalogdesk/internal/core"
	"github.com/JonMunkholm/catalogdesk/internal/logging"
	"github.com/JonMunkholm/catalogdesk/internal/web/views"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError writes err as a user message. status 0 takes the status
// the message maps to.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)
	if status == 0 {
		status = msg.Status
	}

	level := logging.FromContext(r.Context()).Warn
	if status >= http.StatusInternalServerError {
		level = logging.FromContext(r.Context()).Error
	}
	level("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", chimw.GetReqID(r.Context()),
	)

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		// htmx ignores non-2xx bodies unless told where to put them.
		w.Header().Set("HX-Retarget", "#alerts")
		w.WriteHeader(status)
		_ = views.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
	case wantsJSON(r):
		writeJSON(w, status, ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
	default:
		http.Error(w, msg.Message+" ("+msg.Code+")", status)
	}
}

// respondResult writes a bulk action result: the result itself on success,
// the mapped error otherwise.
func (s *Server) respondResult(w http.ResponseWriter, r *http.Request, res bulk.Result) {
	if !res.Success {
		err := res.Err
		if err == nil {
			err = errors.New(res.Error)
		}
		s.respondError(w, r, err, 0)
		return
	}
	if isHTMX(r) {
		w.Header().Set("HX-Trigger", "catalogChanged")
		_ = views.Notice(successText(res)).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func successText(res bulk.Result) string {
	switch res.Action {
	case bulk.ActionDelete:
		return pluralize(res.Count, "product") + " deleted"
	case bulk.ActionSave:
		return pluralize(res.Count, "product") + " saved for later"
	case bulk.ActionImport:
		return pluralize(res.Count, "product") + " read from " + res.FileName
	case bulk.ActionPersist:
		return pluralize(res.Count, "product") + " added to the catalog"
	default:
		return "Done"
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json") ||
		strings.HasPrefix(r.URL.Path, "/api/")
}
