package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	hkerrors "github.com/hookstream/hookstream/internal/errors"
)

// SnapshotEntry captures the prior tier of one previously-priority event.
type SnapshotEntry struct {
	EventID          int64           `json:"event_id"`
	Priority         int             `json:"priority"`
	PriorityMetadata json.RawMessage `json:"priority_metadata,omitempty"`
}

// PrioritySnapshot is the explicit, versioned backup produced by Rollback and
// consumed by Restore. It is also persisted in the priority_backup table so a
// restore can follow a process restart; the persisted copy is deleted when
// the snapshot is consumed.
type PrioritySnapshot struct {
	Version   int64           `json:"version"`
	CreatedAt int64           `json:"created_at"`
	Entries   []SnapshotEntry `json:"entries"`
}

// Rollback snapshots every priority event and flips it to the regular tier.
// The snapshot replaces any earlier unconsumed snapshot. The whole operation
// is a single transaction: either every row is flipped and backed up, or none.
func (s *EventStore) Rollback(ctx context.Context) (*PrioritySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, hkerrors.NewStoreError(hkerrors.CodeInsertFailed, "failed to begin rollback transaction", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		"SELECT id, priority, priority_metadata FROM events WHERE priority > 0 ORDER BY id")
	if err != nil {
		return nil, hkerrors.NewQueryError(hkerrors.CodeScanFailed, "failed to query priority events", err)
	}

	snapshot := &PrioritySnapshot{
		Version:   time.Now().UnixMilli(),
		CreatedAt: time.Now().UnixMilli(),
	}
	for rows.Next() {
		var entry SnapshotEntry
		var metadata sql.NullString
		if err := rows.Scan(&entry.EventID, &entry.Priority, &metadata); err != nil {
			rows.Close()
			return nil, hkerrors.NewQueryError(hkerrors.CodeScanFailed, "failed to scan priority event", err)
		}
		if metadata.Valid {
			entry.PriorityMetadata = json.RawMessage(metadata.String)
		}
		snapshot.Entries = append(snapshot.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, hkerrors.NewQueryError(hkerrors.CodeScanFailed, "error iterating priority events", err)
	}
	rows.Close()

	// One live snapshot at a time.
	if _, err := tx.ExecContext(ctx, "DELETE FROM priority_backup"); err != nil {
		return nil, hkerrors.NewStoreError(hkerrors.CodeInsertFailed, "failed to clear previous backup", err)
	}

	for _, entry := range snapshot.Entries {
		var metadata interface{}
		if len(entry.PriorityMetadata) > 0 {
			metadata = string(entry.PriorityMetadata)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO priority_backup (snapshot_version, event_id, priority, priority_metadata, created_at) VALUES (?, ?, ?, ?, ?)",
			snapshot.Version, entry.EventID, entry.Priority, metadata, snapshot.CreatedAt); err != nil {
			return nil, hkerrors.NewStoreError(hkerrors.CodeInsertFailed, "failed to write backup row", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE events SET priority = 0, priority_metadata = NULL WHERE priority > 0"); err != nil {
		return nil, hkerrors.NewStoreError(hkerrors.CodeInsertFailed, "failed to clear priority tiers", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, hkerrors.NewStoreError(hkerrors.CodeInsertFailed, "failed to commit rollback", err)
	}
	return snapshot, nil
}

// Restore re-applies a snapshot produced by Rollback and consumes its
// persisted copy. A nil or empty snapshot yields ErrNoBackup.
func (s *EventStore) Restore(ctx context.Context, snapshot *PrioritySnapshot) error {
	if snapshot == nil || len(snapshot.Entries) == 0 {
		return hkerrors.ErrNoBackup
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return hkerrors.NewStoreError(hkerrors.CodeInsertFailed, "failed to begin restore transaction", err)
	}
	defer tx.Rollback()

	for _, entry := range snapshot.Entries {
		var metadata interface{}
		if len(entry.PriorityMetadata) > 0 {
			metadata = string(entry.PriorityMetadata)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE events SET priority = ?, priority_metadata = ? WHERE id = ?",
			entry.Priority, metadata, entry.EventID); err != nil {
			return hkerrors.NewStoreError(hkerrors.CodeInsertFailed, "failed to restore event priority", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM priority_backup WHERE snapshot_version = ?", snapshot.Version); err != nil {
		return hkerrors.NewStoreError(hkerrors.CodeInsertFailed, "failed to consume backup", err)
	}

	if err := tx.Commit(); err != nil {
		return hkerrors.NewStoreError(hkerrors.CodeInsertFailed, "failed to commit restore", err)
	}
	return nil
}

// LoadBackup fetches the persisted snapshot left by the most recent rollback.
// It returns ErrNoBackup when no rollback is pending, which is the expected
// signal for a restore attempted without a prior rollback.
func (s *EventStore) LoadBackup(ctx context.Context) (*PrioritySnapshot, error) {
	rows, err := s.readDB.QueryContext(ctx,
		"SELECT snapshot_version, event_id, priority, priority_metadata, created_at FROM priority_backup ORDER BY event_id")
	if err != nil {
		return nil, hkerrors.NewQueryError(hkerrors.CodeScanFailed, "failed to query backup", err)
	}
	defer rows.Close()

	var snapshot *PrioritySnapshot
	for rows.Next() {
		var (
			entry     SnapshotEntry
			version   int64
			createdAt int64
			metadata  sql.NullString
		)
		if err := rows.Scan(&version, &entry.EventID, &entry.Priority, &metadata, &createdAt); err != nil {
			return nil, hkerrors.NewQueryError(hkerrors.CodeScanFailed, "failed to scan backup row", err)
		}
		if metadata.Valid {
			entry.PriorityMetadata = json.RawMessage(metadata.String)
		}
		if snapshot == nil {
			snapshot = &PrioritySnapshot{Version: version, CreatedAt: createdAt}
		}
		snapshot.Entries = append(snapshot.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, hkerrors.NewQueryError(hkerrors.CodeScanFailed, "error iterating backup rows", err)
	}

	if snapshot == nil {
		return nil, hkerrors.ErrNoBackup
	}
	return snapshot, nil
}
