package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/user/dialogtest/internal/store"
)

type errorBody struct {
	Error string `json:"error"`
}

// jsonResponse writes data as JSON. A nil body or 204 writes headers only.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil || status == http.StatusNoContent {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorBody{Error: message})
}

func textResponse(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// storeError maps store lookups to 404 and everything else to 500.
func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		jsonError(w, http.StatusNotFound, "run not found")
		return
	}
	jsonError(w, http.StatusInternalServerError, err.Error())
}
