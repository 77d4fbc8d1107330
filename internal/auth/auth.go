// Package auth guards the routes that change shared viewer state (pointer
// input, selection, the interactive websocket) behind a Bearer token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// exemptPaths are always public regardless of auth configuration.
var exemptPaths = map[string]bool{
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/api/v1/scene":         true,
	"/api/v1/stream/frames": true,
}

// readOnlyPaths are public for GET and HEAD only.
var readOnlyPaths = map[string]bool{
	"/api/v1/selection": true,
}

// exemptPrefixes are path prefixes that are always public.
var exemptPrefixes = []string{
	"/api/v1/satellites/",
}

// queryTokenPaths accept the token as ?access_token= because browsers cannot
// set headers on a websocket handshake.
var queryTokenPaths = map[string]bool{
	"/api/v1/ws": true,
}

// isExempt returns true if the request is exempt from auth.
func isExempt(r *http.Request) bool {
	path := r.URL.Path
	if exemptPaths[path] {
		return true
	}
	if readOnlyPaths[path] && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		return true
	}
	for _, prefix := range exemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func requestToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		token := strings.TrimPrefix(header, "Bearer ")
		return token, token != header
	}
	if queryTokenPaths[r.URL.Path] {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, true
		}
	}
	return "", false
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on non-exempt paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := requestToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
