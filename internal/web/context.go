package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/JonMunkholm/catalogdesk/internal/audit"
)

const maxJSONBody = 1 << 20

var errBadRequest = errors.New("bad request")

// requestOrigin puts the client IP and user agent on the context so audit
// entries recorded while serving the request carry them.
func requestOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := audit.ContextWithIPAddress(r.Context(), r.RemoteAddr)
		ctx = audit.ContextWithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// decodeJSON reads a JSON body into v. Malformed bodies wrap errBadRequest.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
