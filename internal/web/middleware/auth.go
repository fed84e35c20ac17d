package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/catalogdesk/internal/config"
)

// APIKeyAuth checks X-API-Key (or an Authorization bearer token) against
// the configured keys. With RequireAPIKey off every request passes.
func APIKeyAuth(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	keys := make([][]byte, len(cfg.APIKeys))
	for i, k := range cfg.APIKeys {
		keys[i] = []byte(k)
	}

	return func(next http.Handler) http.Handler {
		if !cfg.RequireAPIKey {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := requestKey(r)
			if key == "" {
				slog.Warn("auth: missing API key", "path", r.URL.Path, "method", r.Method, "ip", r.RemoteAddr)
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH001")
				return
			}
			if !validKey([]byte(key), keys) {
				slog.Warn("auth: invalid API key", "path", r.URL.Path, "method", r.Method, "ip", r.RemoteAddr)
				writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH002")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestKey(r *http.Request) string {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	if auth, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(auth)
	}
	return ""
}

// validKey compares against every key so timing does not reveal which
// one matched.
func validKey(key []byte, keys [][]byte) bool {
	valid := 0
	for _, k := range keys {
		valid |= subtle.ConstantTimeCompare(key, k)
	}
	return valid == 1
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":"` + code + `"}`))
}
