// Package api serves stored runs and their transcripts over HTTP.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/user/dialogtest/internal/hub"
	"github.com/user/dialogtest/internal/store"
)

type handler struct {
	db  *store.DB
	hub *hub.Hub
}

// NewRouter returns the /api handler. h may be nil when no live hub runs.
// An empty token disables authentication.
func NewRouter(database *store.DB, h *hub.Hub, token string) http.Handler {
	handler := &handler{db: database, hub: h}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs", handler.listRuns)
	mux.HandleFunc("GET /api/runs/active", handler.listActiveRuns)
	mux.HandleFunc("GET /api/runs/{id}", handler.getRun)
	mux.HandleFunc("GET /api/runs/{id}/transcript", handler.getTranscript)
	mux.HandleFunc("DELETE /api/runs/{id}", handler.deleteRun)

	return corsMiddleware(authMiddleware(token)(mux))
}

// requestToken takes a bearer token from the Authorization header, then
// the token query parameter.
func requestToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > len("bearer ") && strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return r.URL.Query().Get("token")
}

func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subtle.ConstantTimeCompare([]byte(requestToken(r)), want) != 1 {
				jsonError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware answers preflight requests before authentication.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,DELETE,OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
