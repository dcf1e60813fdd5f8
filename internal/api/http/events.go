package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/hookstream/hookstream/internal/broadcast"
	"github.com/hookstream/hookstream/internal/observability"
	"github.com/hookstream/hookstream/internal/store"
	"github.com/hookstream/hookstream/pkg/types"
)

// IngestHandler handles POST /v1/events requests. Insert and broadcast run
// synchronously in the request path so a 200 means the event is durable and
// already fanned out.
type IngestHandler struct {
	store       *store.EventStore
	broadcaster *broadcast.Broadcaster
	stats       *observability.IngestStats

	// publishMu couples each insert with its broadcast. Without it, two
	// concurrent producers could fan out in inverted id order.
	publishMu sync.Mutex
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(s *store.EventStore, b *broadcast.Broadcaster, stats *observability.IngestStats) *IngestHandler {
	return &IngestHandler{
		store:       s,
		broadcaster: b,
		stats:       stats,
	}
}

// ServeHTTP handles the event append request.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	var draft types.EventDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}

	// Fan-out happens after the durable insert, under the same lock so
	// observers see events in id order; a slow observer is the broadcaster's
	// problem, never the producer's.
	h.publishMu.Lock()
	evt, err := h.store.Insert(r.Context(), draft)
	if err != nil {
		h.publishMu.Unlock()
		writeHookstreamError(w, err, requestID)
		return
	}
	h.broadcaster.Publish(evt)
	h.publishMu.Unlock()

	if h.stats != nil {
		h.stats.RecordEvent(evt.HookEventType, evt.Priority)
	}

	writeJSON(w, http.StatusOK, evt)
}
