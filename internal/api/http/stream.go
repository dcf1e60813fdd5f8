package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hookstream/hookstream/internal/broadcast"
	"github.com/hookstream/hookstream/internal/store"
)

// StreamHandler handles GET /v1/stream requests: a server-sent-events feed of
// the real-time channel. A request without session_id parameters registers a
// global observer and receives an initial snapshot before live events; with
// session_id parameters the observer is scoped and gets live events only.
type StreamHandler struct {
	store       *store.EventStore
	broadcaster *broadcast.Broadcaster
	defaults    store.RetentionConfig
	shutdownCh  <-chan struct{}
}

// NewStreamHandler creates a new stream handler. defaults governs the initial
// snapshot; shutdownCh, when closed, terminates all open streams.
func NewStreamHandler(s *store.EventStore, b *broadcast.Broadcaster, defaults store.RetentionConfig, shutdownCh <-chan struct{}) *StreamHandler {
	return &StreamHandler{
		store:       s,
		broadcaster: b,
		defaults:    defaults.Normalize(),
		shutdownCh:  shutdownCh,
	}
}

// ServeHTTP upgrades the request to an event stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", requestID)
		return
	}

	sessions := r.URL.Query()["session_id"]
	obs := h.broadcaster.Register(sessions...)
	defer h.broadcaster.Unregister(obs.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Observer-ID", obs.ID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if obs.Global() {
		if err := h.sendInitial(w, r, obs); err != nil {
			return
		}
		flusher.Flush()
	}

	for {
		select {
		case msg, open := <-obs.C():
			if !open {
				// Evicted by the broadcaster.
				return
			}
			if err := writeSSE(w, msg); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		case <-h.shutdownCh:
			return
		}
	}
}

// sendInitial builds the connect-time snapshot for a global observer: the
// currently-visible event set under the configured retention plus summary
// counts.
func (h *StreamHandler) sendInitial(w http.ResponseWriter, r *http.Request, obs *broadcast.Observer) error {
	events, err := h.store.RecentEvents(r.Context(), h.defaults)
	if err != nil {
		return err
	}
	stats, err := h.store.Stats(r.Context(), h.defaults)
	if err != nil {
		return err
	}

	msg := broadcast.Message{
		Type: broadcast.TypeInitial,
		Data: broadcast.InitialData{
			Events:         events,
			TotalEvents:    stats.TotalEvents,
			PriorityEvents: stats.PriorityEvents,
			RegularEvents:  stats.RegularEvents,
			RetentionWnd:   stats.RetentionWnd,
		},
	}
	return writeSSE(w, msg)
}

// writeSSE encodes one message as a server-sent event.
func writeSSE(w http.ResponseWriter, msg broadcast.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// SubscribeRequest is the body of a subscription command.
type SubscribeRequest struct {
	SessionID string `json:"session_id"`
}

// SubscribeResponse acknowledges a subscription command.
type SubscribeResponse struct {
	ObserverID string `json:"observer_id"`
	SessionID  string `json:"session_id"`
	Subscribed bool   `json:"subscribed"`
}

// SubscribeHandler handles POST /v1/stream/{observerID}/subscribe requests,
// adding a session to a connected observer's subscription set.
type SubscribeHandler struct {
	broadcaster *broadcast.Broadcaster
}

// NewSubscribeHandler creates a new subscribe handler.
func NewSubscribeHandler(b *broadcast.Broadcaster) *SubscribeHandler {
	return &SubscribeHandler{broadcaster: b}
}

// ServeHTTP applies the subscription command.
func (h *SubscribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/stream/")
	observerID, ok := strings.CutSuffix(path, "/subscribe")
	if !ok || observerID == "" || strings.Contains(observerID, "/") {
		writeError(w, http.StatusBadRequest, "observer id is required", requestID)
		return
	}

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required", requestID)
		return
	}

	if !h.broadcaster.Subscribe(observerID, req.SessionID) {
		writeError(w, http.StatusNotFound, "observer not found", requestID)
		return
	}

	writeJSON(w, http.StatusOK, SubscribeResponse{
		ObserverID: observerID,
		SessionID:  req.SessionID,
		Subscribed: true,
	})
}
