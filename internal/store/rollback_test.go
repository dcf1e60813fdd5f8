package store

import (
	"context"
	"errors"
	"testing"

	hkerrors "github.com/hookstream/hookstream/internal/errors"
	"github.com/hookstream/hookstream/pkg/types"
)

func seedMixedEvents(t *testing.T, s *EventStore) {
	t.Helper()
	ctx := context.Background()
	for _, kind := range []string{"UserPromptSubmit", "PreToolUse", "Notification", "PostToolUse", "Stop"} {
		if _, err := s.Insert(ctx, types.EventDraft{
			SourceApp:     "app",
			SessionID:     "s1",
			HookEventType: kind,
		}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
}

func TestRollbackClearsPriority(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedMixedEvents(t, s)

	snapshot, err := s.Rollback(ctx)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if len(snapshot.Entries) != 3 {
		t.Fatalf("snapshot holds %d entries, want 3", len(snapshot.Entries))
	}
	if snapshot.Version <= 0 {
		t.Errorf("snapshot version = %d, want > 0", snapshot.Version)
	}

	stats, err := s.Stats(ctx, RetentionConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.PriorityEvents != 0 {
		t.Errorf("priority events after rollback = %d, want 0", stats.PriorityEvents)
	}

	// No row retains metadata after the tiers are cleared.
	events, err := s.SessionEvents(ctx, "s1", nil, RetentionConfig{})
	if err != nil {
		t.Fatal(err)
	}
	for _, evt := range events {
		if evt.PriorityMetadata != nil {
			t.Errorf("event %d retains metadata after rollback", evt.ID)
		}
	}
}

func TestRollbackRestoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedMixedEvents(t, s)

	before, err := s.SessionEvents(ctx, "s1", nil, RetentionConfig{})
	if err != nil {
		t.Fatal(err)
	}

	snapshot, err := s.Rollback(ctx)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if err := s.Restore(ctx, snapshot); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	after, err := s.SessionEvents(ctx, "s1", nil, RetentionConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Fatalf("event count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if after[i].Priority != before[i].Priority {
			t.Errorf("event %d: priority %d -> %d", before[i].ID, before[i].Priority, after[i].Priority)
		}
		hadMeta := before[i].PriorityMetadata != nil
		hasMeta := after[i].PriorityMetadata != nil
		if hadMeta != hasMeta {
			t.Errorf("event %d: metadata presence changed", before[i].ID)
		}
	}

	// The persisted backup is consumed by the restore.
	if _, err := s.LoadBackup(ctx); !errors.Is(err, hkerrors.ErrNoBackup) {
		t.Errorf("LoadBackup after restore = %v, want ErrNoBackup", err)
	}
}

func TestRestoreSurvivesReopen(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedMixedEvents(t, s)

	if _, err := s.Rollback(ctx); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	path := s.dbPath
	s.Close()

	// The snapshot is persisted, so a fresh process can still restore.
	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	snapshot, err := reopened.LoadBackup(ctx)
	if err != nil {
		t.Fatalf("LoadBackup failed: %v", err)
	}
	if err := reopened.Restore(ctx, snapshot); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	stats, err := reopened.Stats(ctx, RetentionConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.PriorityEvents != 3 {
		t.Errorf("priority events after restore = %d, want 3", stats.PriorityEvents)
	}
}

func TestRestoreWithoutBackup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.LoadBackup(ctx); !errors.Is(err, hkerrors.ErrNoBackup) {
		t.Errorf("LoadBackup on fresh store = %v, want ErrNoBackup", err)
	}
	if err := s.Restore(ctx, nil); !errors.Is(err, hkerrors.ErrNoBackup) {
		t.Errorf("Restore(nil) = %v, want ErrNoBackup", err)
	}
	if err := s.Restore(ctx, &PrioritySnapshot{}); !errors.Is(err, hkerrors.ErrNoBackup) {
		t.Errorf("Restore(empty) = %v, want ErrNoBackup", err)
	}
}

func TestRollbackInsertRestore(t *testing.T) {
	// Events inserted between rollback and restore keep their live
	// classification; the restore only touches snapshotted rows.
	s := openTestStore(t)
	ctx := context.Background()
	seedMixedEvents(t, s)

	snapshot, err := s.Rollback(ctx)
	if err != nil {
		t.Fatal(err)
	}

	mid, err := s.Insert(ctx, types.EventDraft{
		SourceApp:     "app",
		SessionID:     "s1",
		HookEventType: "Notification",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !mid.IsPriority() {
		t.Fatal("insert during rollback window lost live classification")
	}

	if err := s.Restore(ctx, snapshot); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Stats(ctx, RetentionConfig{})
	if err != nil {
		t.Fatal(err)
	}
	// 3 restored + 1 inserted mid-window.
	if stats.PriorityEvents != 4 {
		t.Errorf("priority events = %d, want 4", stats.PriorityEvents)
	}
}
