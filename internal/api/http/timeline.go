package http

import (
	"net/http"
	"strings"

	"github.com/hookstream/hookstream/internal/timeline"
)

// TimelineHandler handles GET /v1/sessions/{sessionID}/timeline requests.
type TimelineHandler struct {
	transformer *timeline.Transformer
}

// NewTimelineHandler creates a new timeline handler.
func NewTimelineHandler(t *timeline.Transformer) *TimelineHandler {
	return &TimelineHandler{transformer: t}
}

// ServeHTTP builds and serves the session timeline. The timeline is computed
// fresh per request; an unknown session yields an empty timeline, not a 404.
func (h *TimelineHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	sessionID, ok := strings.CutSuffix(path, "/timeline")
	if !ok || sessionID == "" || strings.Contains(sessionID, "/") {
		writeError(w, http.StatusBadRequest, "session id is required", requestID)
		return
	}

	result, err := h.transformer.Build(r.Context(), sessionID)
	if err != nil {
		writeHookstreamError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
