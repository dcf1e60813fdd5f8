package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	hkerrors "github.com/hookstream/hookstream/internal/errors"
	"github.com/hookstream/hookstream/pkg/types"
)

func openTestStore(t *testing.T) *EventStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		draft types.EventDraft
	}{
		{"missing source_app", types.EventDraft{SessionID: "s1", HookEventType: "PreToolUse"}},
		{"missing session_id", types.EventDraft{SourceApp: "app", HookEventType: "PreToolUse"}},
		{"missing hook_event_type", types.EventDraft{SourceApp: "app", SessionID: "s1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Insert(ctx, tt.draft); err == nil {
				t.Error("Insert accepted an invalid draft")
			} else if hkerrors.GetCategory(err) != hkerrors.ErrCategoryValidation {
				t.Errorf("error category = %s, want VALIDATION", hkerrors.GetCategory(err))
			}
		})
	}
}

func TestInsertClassifiesPriority(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	evt, err := s.Insert(ctx, types.EventDraft{
		SourceApp:     "app",
		SessionID:     "s1",
		HookEventType: "UserPromptSubmit",
		Payload:       json.RawMessage(`{"prompt":"hello"}`),
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if evt.ID <= 0 {
		t.Errorf("ID = %d, want > 0", evt.ID)
	}
	if !evt.IsPriority() {
		t.Error("UserPromptSubmit not classified as priority")
	}
	if evt.PriorityMetadata == nil {
		t.Fatal("priority event missing metadata")
	}
	if evt.PriorityMetadata.ClassificationReason != types.ReasonAutomatic {
		t.Errorf("reason = %q, want %q", evt.PriorityMetadata.ClassificationReason, types.ReasonAutomatic)
	}

	regular, err := s.Insert(ctx, types.EventDraft{
		SourceApp:     "app",
		SessionID:     "s1",
		HookEventType: "PreToolUse",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if regular.IsPriority() {
		t.Error("PreToolUse classified as priority")
	}
	if regular.PriorityMetadata != nil {
		t.Error("regular event carries priority metadata")
	}
}

func TestInsertDefaultsTimestampAndPayload(t *testing.T) {
	s := openTestStore(t)
	fixed := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return fixed }

	evt, err := s.Insert(context.Background(), types.EventDraft{
		SourceApp:     "app",
		SessionID:     "s1",
		HookEventType: "PreToolUse",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if evt.Timestamp != fixed.UnixMilli() {
		t.Errorf("Timestamp = %d, want %d", evt.Timestamp, fixed.UnixMilli())
	}
	if string(evt.Payload) != "{}" {
		t.Errorf("Payload = %q, want empty object", evt.Payload)
	}
}

func TestInsertRoundTripsChat(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	chat := json.RawMessage(`[{"role":"user","content":"build the thing"},{"role":"assistant","content":"on it"}]`)
	inserted, err := s.Insert(ctx, types.EventDraft{
		SourceApp:     "app",
		SessionID:     "s-chat",
		HookEventType: "Stop",
		Chat:          chat,
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	events, err := s.SessionEvents(ctx, "s-chat", nil, RetentionConfig{})
	if err != nil {
		t.Fatalf("SessionEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].ID != inserted.ID {
		t.Errorf("ID = %d, want %d", events[0].ID, inserted.ID)
	}
	if !bytes.Equal(events[0].Chat, chat) {
		t.Errorf("chat round trip mismatch: got %s", events[0].Chat)
	}
}

func TestRecentEventsEmptyStore(t *testing.T) {
	s := openTestStore(t)

	events, err := s.RecentEvents(context.Background(), RetentionConfig{})
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if events == nil {
		t.Fatal("RecentEvents returned nil, want empty slice")
	}
	if len(events) != 0 {
		t.Fatalf("got %d events, want 0", len(events))
	}
}

func TestRecentEventsRetentionWindows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return now }

	insertAt := func(kind string, age time.Duration) {
		t.Helper()
		_, err := s.Insert(ctx, types.EventDraft{
			SourceApp:     "app",
			SessionID:     "s1",
			HookEventType: kind,
			Timestamp:     now.Add(-age).UnixMilli(),
		})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	// Priority events stay visible for 24h, regular for 4h.
	insertAt("UserPromptSubmit", 12*time.Hour) // visible
	insertAt("UserPromptSubmit", 30*time.Hour) // expired
	insertAt("PreToolUse", 2*time.Hour)        // visible
	insertAt("PreToolUse", 6*time.Hour)        // expired: outside regular window

	events, err := s.RecentEvents(ctx, RetentionConfig{})
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	// Ascending order: the 12h-old priority event precedes the 2h-old regular.
	if !events[0].IsPriority() || events[1].IsPriority() {
		t.Errorf("unexpected tier order: %d then %d", events[0].Priority, events[1].Priority)
	}
	if events[0].Timestamp > events[1].Timestamp {
		t.Error("events not in ascending timestamp order")
	}
}

func TestSessionEventsUnknownSession(t *testing.T) {
	s := openTestStore(t)

	events, err := s.SessionEvents(context.Background(), "never-seen", nil, RetentionConfig{})
	if err != nil {
		t.Fatalf("SessionEvents failed: %v", err)
	}
	if events == nil || len(events) != 0 {
		t.Fatalf("got %v, want empty slice", events)
	}
}

func TestSessionEventsTypeFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, kind := range []string{"UserPromptSubmit", "PreToolUse", "PostToolUse", "Stop"} {
		if _, err := s.Insert(ctx, types.EventDraft{
			SourceApp:     "app",
			SessionID:     "s1",
			HookEventType: kind,
		}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	events, err := s.SessionEvents(ctx, "s1", []string{"UserPromptSubmit", "PreToolUse"}, RetentionConfig{})
	if err != nil {
		t.Fatalf("SessionEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	for _, evt := range events {
		if evt.HookEventType != "UserPromptSubmit" && evt.HookEventType != "PreToolUse" {
			t.Errorf("unexpected event kind %q", evt.HookEventType)
		}
	}
}

func TestSessionEventsRequiresID(t *testing.T) {
	s := openTestStore(t)

	_, err := s.SessionEvents(context.Background(), "", nil, RetentionConfig{})
	var he *hkerrors.HookstreamError
	if !errors.As(err, &he) || he.Code != hkerrors.CodeMissingSessionID {
		t.Fatalf("err = %v, want MISSING_SESSION_ID", err)
	}
}

func TestStatsCountsPerTier(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Insert(ctx, types.EventDraft{SourceApp: "app", SessionID: "s1", HookEventType: "Notification"}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 5; i++ {
		if _, err := s.Insert(ctx, types.EventDraft{SourceApp: "app", SessionID: "s1", HookEventType: "PreToolUse"}); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := s.Stats(ctx, RetentionConfig{})
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.PriorityEvents != 3 || stats.RegularEvents != 5 || stats.TotalEvents != 8 {
		t.Errorf("stats = %+v, want 3 priority / 5 regular / 8 total", stats)
	}
	if stats.RetentionWnd.PriorityHours != DefaultPriorityRetentionHours {
		t.Errorf("priority window = %d, want %d", stats.RetentionWnd.PriorityHours, DefaultPriorityRetentionHours)
	}
}

func TestSessionSeen(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if s.SessionSeen("s1") {
		t.Error("SessionSeen(s1) = true before any insert")
	}
	if _, err := s.Insert(ctx, types.EventDraft{SourceApp: "app", SessionID: "s1", HookEventType: "PreToolUse"}); err != nil {
		t.Fatal(err)
	}
	if !s.SessionSeen("s1") {
		t.Error("SessionSeen(s1) = false after insert")
	}
}
