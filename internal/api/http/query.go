package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hookstream/hookstream/internal/store"
)

// RecentEventsHandler handles GET /v1/events/recent requests.
type RecentEventsHandler struct {
	store    *store.EventStore
	defaults store.RetentionConfig
}

// NewRecentEventsHandler creates a new recent-events handler. defaults is the
// server-configured retention baseline; query parameters override it.
func NewRecentEventsHandler(s *store.EventStore, defaults store.RetentionConfig) *RecentEventsHandler {
	return &RecentEventsHandler{store: s, defaults: defaults}
}

// ServeHTTP serves the dual-bucket retention query.
func (h *RecentEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	events, err := h.store.RecentEvents(r.Context(), cfg)
	if err != nil {
		writeHookstreamError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

// SessionEventsHandler handles GET /v1/events/session/{sessionID} requests.
type SessionEventsHandler struct {
	store    *store.EventStore
	defaults store.RetentionConfig
}

// NewSessionEventsHandler creates a new session-events handler.
func NewSessionEventsHandler(s *store.EventStore, defaults store.RetentionConfig) *SessionEventsHandler {
	return &SessionEventsHandler{store: s, defaults: defaults}
}

// ServeHTTP serves the session-scoped event query.
func (h *SessionEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/v1/events/session/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		writeError(w, http.StatusBadRequest, "session id is required", requestID)
		return
	}

	cfg, err := parseRetentionConfig(r, h.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	var eventTypes []string
	if raw := r.URL.Query().Get("event_types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				eventTypes = append(eventTypes, t)
			}
		}
	}

	events, err := h.store.SessionEvents(r.Context(), sessionID, eventTypes, cfg)
	if err != nil {
		writeHookstreamError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

// parseRetentionConfig reads the retention tuning knobs from query parameters
// on top of the server-configured defaults. Absent or zero parameters keep the
// configured baseline.
func parseRetentionConfig(r *http.Request, defaults store.RetentionConfig) (store.RetentionConfig, error) {
	cfg := defaults.Normalize()
	q := r.URL.Query()

	params := []struct {
		name string
		dst  *int
	}{
		{"limit", &cfg.TotalLimit},
		{"priority_limit", &cfg.PriorityLimit},
		{"regular_limit", &cfg.RegularLimit},
		{"priority_retention_hours", &cfg.PriorityRetentionHours},
		{"regular_retention_hours", &cfg.RegularRetentionHours},
	}
	for _, p := range params {
		n, err := parseIntParam(q.Get(p.name))
		if err != nil {
			return cfg, err
		}
		if n > 0 {
			*p.dst = n
		}
	}
	return cfg, nil
}

// parseIntParam parses a non-negative integer query parameter; empty is zero.
func parseIntParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &paramError{raw: raw}
	}
	return n, nil
}

type paramError struct {
	raw string
}

func (e *paramError) Error() string {
	return "invalid integer parameter: " + e.raw
}
