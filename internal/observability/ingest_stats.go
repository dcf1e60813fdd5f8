// Package observability provides ingest statistics tracking for operational
// monitoring of the event stream.
package observability

import (
	"sort"
	"sync"
	"time"
)

// IngestStats tracks per-kind and per-tier ingest counters.
type IngestStats struct {
	mu       sync.RWMutex
	kindFreq map[string]*KindStats
	priority int64
	regular  int64
	window   time.Duration
	started  time.Time
}

// KindStats holds counters for one hook event type.
type KindStats struct {
	Kind      string    `json:"kind"`
	Count     int64     `json:"count"`
	Priority  int64     `json:"priority"`
	LastSeen  time.Time `json:"last_seen"`
}

// NewIngestStats creates a new ingest statistics tracker.
// window bounds how stale an entry may be before Prune drops it.
func NewIngestStats(window time.Duration) *IngestStats {
	return &IngestStats{
		kindFreq: make(map[string]*KindStats),
		window:   window,
		started:  time.Now(),
	}
}

// RecordEvent records one ingested event. O(1) and thread-safe.
func (s *IngestStats) RecordEvent(hookEventType string, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.kindFreq[hookEventType]
	if !ok {
		stats = &KindStats{Kind: hookEventType}
		s.kindFreq[hookEventType] = stats
	}
	stats.Count++
	stats.LastSeen = time.Now()
	if priority > 0 {
		stats.Priority++
		s.priority++
	} else {
		s.regular++
	}
}

// Totals returns the priority and regular ingest counters since start.
func (s *IngestStats) Totals() (priority, regular int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.priority, s.regular
}

// TopKinds returns the n most frequent event kinds, descending by count.
func (s *IngestStats) TopKinds(n int) []KindStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.kindFreq) == 0 {
		return []KindStats{}
	}

	kinds := make([]KindStats, 0, len(s.kindFreq))
	for _, ks := range s.kindFreq {
		kinds = append(kinds, *ks)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return kinds[i].Count > kinds[j].Count
	})
	if n > len(kinds) {
		n = len(kinds)
	}
	return kinds[:n]
}

// Prune drops kinds not seen within the window.
func (s *IngestStats) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.window)
	for kind, ks := range s.kindFreq {
		if ks.LastSeen.Before(cutoff) {
			delete(s.kindFreq, kind)
		}
	}
}

// Uptime returns the tracker's age.
func (s *IngestStats) Uptime() time.Duration {
	return time.Since(s.started)
}
