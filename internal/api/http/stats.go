package http

import (
	"net/http"
	"time"

	"github.com/hookstream/hookstream/internal/broadcast"
	"github.com/hookstream/hookstream/internal/observability"
	"github.com/hookstream/hookstream/internal/store"
)

// StatsResponse summarizes the store, the broadcaster, and the ingest path.
type StatsResponse struct {
	Store     *store.Stats              `json:"store"`
	Observers int                       `json:"observers"`
	Ingest    IngestStatsView           `json:"ingest"`
	TopKinds  []observability.KindStats `json:"top_kinds"`
	UptimeSec int64                     `json:"uptime_seconds"`
}

// IngestStatsView holds the lifetime ingest counters.
type IngestStatsView struct {
	PriorityEvents int64 `json:"priority_events"`
	RegularEvents  int64 `json:"regular_events"`
}

// StatsHandler handles GET /v1/stats requests.
type StatsHandler struct {
	store       *store.EventStore
	broadcaster *broadcast.Broadcaster
	ingest      *observability.IngestStats
	defaults    store.RetentionConfig
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(s *store.EventStore, b *broadcast.Broadcaster, ingest *observability.IngestStats, defaults store.RetentionConfig) *StatsHandler {
	return &StatsHandler{
		store:       s,
		broadcaster: b,
		ingest:      ingest,
		defaults:    defaults,
	}
}

// ServeHTTP serves the retention-windowed statistics view.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	cfg, err := parseRetentionConfig(r, h.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	storeStats, err := h.store.Stats(r.Context(), cfg)
	if err != nil {
		writeHookstreamError(w, err, requestID)
		return
	}

	priority, regular := h.ingest.Totals()
	writeJSON(w, http.StatusOK, StatsResponse{
		Store:     storeStats,
		Observers: h.broadcaster.ObserverCount(),
		Ingest: IngestStatsView{
			PriorityEvents: priority,
			RegularEvents:  regular,
		},
		TopKinds:  h.ingest.TopKinds(10),
		UptimeSec: int64(h.ingest.Uptime() / time.Second),
	})
}

// HealthHandler handles GET /health requests.
type HealthHandler struct {
	version string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// ServeHTTP serves the liveness probe.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}
