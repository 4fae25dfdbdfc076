package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/user/dialogtest/internal/hub"
	"github.com/user/dialogtest/internal/store"
	"github.com/user/dialogtest/internal/transcript"
)

type entryResponse struct {
	Seq       int64  `json:"seq"`
	Direction string `json:"direction"`
	Text      string `json:"text"`
	Time      string `json:"time"`
}

type transcriptResponse struct {
	RunID    string          `json:"run_id"`
	Entries  []entryResponse `json:"entries"`
	Rendered string          `json:"rendered"`
}

func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Script: q.Get("script"),
		Status: q.Get("status"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			jsonError(w, http.StatusBadRequest, "invalid "+name)
			return
		}
		*dst = n
	}

	runs, err := h.db.Runs().List(r.Context(), filter)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	jsonResponse(w, http.StatusOK, runs)
}

func (h *handler) listActiveRuns(w http.ResponseWriter, r *http.Request) {
	active := []hub.RunMessage{}
	if h.hub != nil {
		active = h.hub.ActiveRuns()
	}
	jsonResponse(w, http.StatusOK, active)
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.db.Runs().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, run)
}

func (h *handler) getTranscript(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.db.Runs().Get(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	entries, err := h.db.Entries().ListByRun(r.Context(), id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if r.URL.Query().Get("format") == "text" {
		textResponse(w, http.StatusOK, transcript.Render(entries))
		return
	}

	resp := transcriptResponse{RunID: id, Entries: make([]entryResponse, 0, len(entries)), Rendered: transcript.Render(entries)}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, entryResponse{
			Seq:       e.Seq,
			Direction: e.Direction.String(),
			Text:      e.Text,
			Time:      e.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	jsonResponse(w, http.StatusOK, resp)
}

func (h *handler) deleteRun(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Runs().Delete(r.Context(), r.PathValue("id")); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}
