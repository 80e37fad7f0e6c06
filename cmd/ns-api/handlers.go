package main

import (
	"FlowSleuth/internal/model"
	"FlowSleuth/internal/query"
	"FlowSleuth/internal/source"
	"FlowSleuth/internal/stitch"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	policy  stitch.MissingKeyPolicy
	querier query.Querier
}

type statsResponse struct {
	Records  int `json:"records"`
	Sessions int `json:"sessions"`
	Merged   int `json:"merged"`
	Reversed int `json:"reversed"`
	Skipped  int `json:"skipped"`
	Unkeyed  int `json:"unkeyed"`
}

type stitchResponse struct {
	Sessions []model.Record `json:"sessions"`
	Stats    statsResponse  `json:"stats"`
}

type sessionsResponse struct {
	Key      string         `json:"key"`
	Sessions []model.Record `json:"sessions"`
}

func newRouter(h *APIHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/stitch", h.stitchHandler).Methods("POST")
	r.HandleFunc("/api/v1/sessions", h.sessionsHandler).Methods("GET")
	return r
}

// stitchHandler stitches the JSON array of records in the request body.
func (h *APIHandler) stitchHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read request body: %v", err), http.StatusBadRequest)
		return
	}
	records, err := source.DecodeArray(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}

	stitcher := stitch.New(h.policy)
	sessions, err := stitcher.StitchRecords(records)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, stitch.ErrInvalidRecord) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, fmt.Sprintf("failed to stitch flows: %v", err), status)
		return
	}
	if sessions == nil {
		sessions = []model.Record{}
	}

	st := stitcher.Stats()
	writeJSON(w, stitchResponse{
		Sessions: sessions,
		Stats: statsResponse{
			Records:  st.Records,
			Sessions: st.Sessions,
			Merged:   st.Merged,
			Reversed: st.Reversed,
			Skipped:  st.Skipped,
			Unkeyed:  st.Unkeyed,
		},
	})
}

// sessionsHandler looks up stored sessions by key.
func (h *APIHandler) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	if h.querier == nil {
		http.Error(w, "session lookup requires a clickhouse writer", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	key := stitch.Key{SrcAddr: q.Get("sa"), DstAddr: q.Get("da")}
	if key.SrcAddr == "" || key.DstAddr == "" {
		http.Error(w, "sa and da are required", http.StatusBadRequest)
		return
	}
	ints := []struct {
		name string
		dst  *int64
	}{
		{"sp", &key.SrcPort},
		{"dp", &key.DstPort},
		{"pr", &key.Protocol},
	}
	for _, p := range ints {
		v, err := strconv.ParseInt(q.Get(p.name), 10, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid %s: %v", p.name, err), http.StatusBadRequest)
			return
		}
		*p.dst = v
	}
	if err := key.CheckRange(); err != nil {
		http.Error(w, fmt.Sprintf("invalid session key: %v", err), http.StatusBadRequest)
		return
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, fmt.Sprintf("invalid limit %q", s), http.StatusBadRequest)
			return
		}
		limit = n
	}

	sessions, err := h.querier.FindSessions(r.Context(), key, limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query sessions: %v", err), http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []model.Record{}
	}
	writeJSON(w, sessionsResponse{Key: key.String(), Sessions: sessions})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}
