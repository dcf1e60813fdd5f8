// Package types defines the core event model shared by the store, the
// broadcast router, and the API surface.
package types

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ClassificationReason records how an event earned its priority tier.
type ClassificationReason string

const (
	// ReasonAutomatic marks events classified at insert time.
	ReasonAutomatic ClassificationReason = "automatic"
	// ReasonMigrationBackfill marks legacy rows re-classified during migration.
	ReasonMigrationBackfill ClassificationReason = "migration_backfill"
)

// RetentionPolicyExtended is the retention policy recorded for priority events.
const RetentionPolicyExtended = "extended"

// PriorityMetadata accompanies every priority event. It is absent iff the
// event's priority tier is 0.
type PriorityMetadata struct {
	ClassifiedAt         int64                `json:"classified_at"`
	ClassificationReason ClassificationReason `json:"classification_reason"`
	RetentionPolicy      string               `json:"retention_policy"`
}

// Event is a single hook lifecycle notification. Rows are append-only and
// immutable once written, except for the priority backfill performed by the
// schema migration.
type Event struct {
	ID               int64             `json:"id"`
	SourceApp        string            `json:"source_app"`
	SessionID        string            `json:"session_id"`
	HookEventType    string            `json:"hook_event_type"`
	Payload          json.RawMessage   `json:"payload"`
	Chat             json.RawMessage   `json:"chat,omitempty"`
	Summary          string            `json:"summary,omitempty"`
	Timestamp        int64             `json:"timestamp"`
	Priority         int               `json:"priority"`
	PriorityMetadata *PriorityMetadata `json:"priority_metadata,omitempty"`
}

// EventDraft is the producer-supplied shape accepted by the append operation.
// Timestamp is optional; a missing or non-positive value is replaced with the
// ingestion time.
type EventDraft struct {
	SourceApp     string          `json:"source_app"`
	SessionID     string          `json:"session_id"`
	HookEventType string          `json:"hook_event_type"`
	Payload       json.RawMessage `json:"payload"`
	Chat          json.RawMessage `json:"chat,omitempty"`
	Summary       string          `json:"summary,omitempty"`
	Timestamp     int64           `json:"timestamp,omitempty"`
}

// UnmarshalJSON decodes a draft with a lenient timestamp. Producers are shell
// hooks with clocks and quoting habits outside our control, so a string or
// otherwise malformed timestamp decodes to zero rather than rejecting the
// whole event; the append path then substitutes ingestion time.
func (d *EventDraft) UnmarshalJSON(data []byte) error {
	type draftAlias EventDraft
	aux := struct {
		Timestamp json.RawMessage `json:"timestamp"`
		*draftAlias
	}{draftAlias: (*draftAlias)(d)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Timestamp = coerceMillis(aux.Timestamp)
	return nil
}

// coerceMillis extracts epoch milliseconds from a raw JSON value: numbers,
// numeric strings, and fractional numbers are accepted; anything else is zero.
func coerceMillis(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int64(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// Time returns the event timestamp as a time.Time.
func (e *Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// IsPriority reports whether the event sits in the priority tier.
func (e *Event) IsPriority() bool {
	return e.Priority > 0
}
