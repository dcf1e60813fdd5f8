package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/hookstream/hookstream/internal/classify"
	hkerrors "github.com/hookstream/hookstream/internal/errors"
	"github.com/hookstream/hookstream/pkg/types"
)

// MigrationStats reports what the priority migration found and did. Re-running
// the migration on an already-migrated store changes nothing: the column and
// index sets and the tier counts come out identical, and the backfill touches
// zero rows.
type MigrationStats struct {
	TotalEvents     int64    `json:"total_events"`
	PriorityEvents  int64    `json:"priority_events"`
	RegularEvents   int64    `json:"regular_events"`
	BackfilledRows  int64    `json:"backfilled_rows"`
	ColumnsAdded    []string `json:"columns_added,omitempty"`
	AlreadyMigrated bool     `json:"already_migrated"`
}

// migrate brings the events schema up to date. The sequence is ordered so a
// crash at any point leaves a readable store: base tables first, then column
// adds, then backfill, then indexes. Every step is a no-op when its work is
// already done, which is what makes re-runs idempotent.
func (s *EventStore) migrate(ctx context.Context) (MigrationStats, error) {
	var stats MigrationStats

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return stats, hkerrors.NewMigrationError(hkerrors.CodeSchemaProbeFailed, "failed to initialize schema", err)
		}
	}

	// Schema probe before any ALTER. Migration status lives in the schema
	// itself, not a separate flag, so a crash mid-migration is re-detected
	// and completed on the next open.
	columns, err := s.tableColumns(ctx, "events")
	if err != nil {
		return stats, err
	}

	hasPriority := columns["priority"]
	hasMetadata := columns["priority_metadata"]
	stats.AlreadyMigrated = hasPriority && hasMetadata

	if !hasPriority {
		if _, err := s.db.ExecContext(ctx,
			"ALTER TABLE events ADD COLUMN priority INTEGER NOT NULL DEFAULT 0"); err != nil {
			return stats, hkerrors.NewMigrationError(hkerrors.CodeSchemaProbeFailed, "failed to add priority column", err)
		}
		stats.ColumnsAdded = append(stats.ColumnsAdded, "priority")
	}
	if !hasMetadata {
		if _, err := s.db.ExecContext(ctx,
			"ALTER TABLE events ADD COLUMN priority_metadata TEXT"); err != nil {
			return stats, hkerrors.NewMigrationError(hkerrors.CodeSchemaProbeFailed, "failed to add priority_metadata column", err)
		}
		stats.ColumnsAdded = append(stats.ColumnsAdded, "priority_metadata")
	}

	// A pending rollback deliberately holds previously-priority rows at tier
	// 0; backfilling would re-promote them behind the operator's back. The
	// backfill resumes once the snapshot is restored or discarded.
	var pendingBackup int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM priority_backup").Scan(&pendingBackup); err != nil {
		return stats, hkerrors.NewMigrationError(hkerrors.CodeSchemaProbeFailed, "failed to check pending backup", err)
	}
	if pendingBackup == 0 {
		backfilled, err := s.backfillPriority(ctx)
		if err != nil {
			return stats, err
		}
		stats.BackfilledRows = backfilled
	} else {
		log.Printf("store: rollback pending (%d backup rows), skipping priority backfill", pendingBackup)
	}

	for _, stmt := range CreateEventIndexesSQL {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return stats, hkerrors.NewMigrationError(hkerrors.CodeSchemaProbeFailed, "failed to create index", err)
		}
	}

	if err := s.countTiers(ctx, &stats); err != nil {
		return stats, err
	}

	if !stats.AlreadyMigrated {
		log.Printf("store: priority migration complete: %d events, %d priority, %d backfilled",
			stats.TotalEvents, stats.PriorityEvents, stats.BackfilledRows)
	}
	return stats, nil
}

// backfillPriority classifies legacy rows. Three repairs, each idempotent:
// priority-kind rows still at tier 0 are promoted with backfill metadata,
// tier-1 rows missing metadata (a partially migrated store) get it, and any
// stray metadata on tier-0 rows is cleared to restore the metadata-iff-priority
// invariant.
func (s *EventStore) backfillPriority(ctx context.Context) (int64, error) {
	metadata, err := json.Marshal(classify.Metadata(types.ReasonMigrationBackfill))
	if err != nil {
		return 0, hkerrors.NewInternalError("failed to marshal backfill metadata", err)
	}

	kinds := classify.PriorityTypes()
	placeholders := strings.TrimPrefix(repeatPlaceholder(len(kinds)), ",")
	args := make([]interface{}, 0, len(kinds)+1)
	args = append(args, string(metadata))
	for _, k := range kinds {
		args = append(args, k)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE events SET priority = 1, priority_metadata = ? WHERE priority = 0 AND hook_event_type IN ("+placeholders+")",
		args...)
	if err != nil {
		return 0, hkerrors.NewMigrationError(hkerrors.CodeBackfillFailed, "failed to backfill priority rows", err)
	}
	promoted, _ := res.RowsAffected()

	res, err = s.db.ExecContext(ctx,
		"UPDATE events SET priority_metadata = ? WHERE priority > 0 AND priority_metadata IS NULL",
		string(metadata))
	if err != nil {
		return 0, hkerrors.NewMigrationError(hkerrors.CodeBackfillFailed, "failed to repair priority metadata", err)
	}
	repaired, _ := res.RowsAffected()

	if _, err := s.db.ExecContext(ctx,
		"UPDATE events SET priority_metadata = NULL WHERE priority = 0 AND priority_metadata IS NOT NULL"); err != nil {
		return 0, hkerrors.NewMigrationError(hkerrors.CodeBackfillFailed, "failed to clear stray metadata", err)
	}

	return promoted + repaired, nil
}

// tableColumns returns the column set of a table via PRAGMA table_info.
// An absent table yields an empty set.
func (s *EventStore) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, hkerrors.NewMigrationError(hkerrors.CodeSchemaProbeFailed, "failed to probe schema", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal interface{}
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, hkerrors.NewMigrationError(hkerrors.CodeSchemaProbeFailed, "failed to scan schema row", err)
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

// indexNames returns the index set on the events table.
func (s *EventStore) indexNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = 'events' AND name LIKE 'idx_%' ORDER BY name")
	if err != nil {
		return nil, hkerrors.NewMigrationError(hkerrors.CodeSchemaProbeFailed, "failed to list indexes", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, hkerrors.NewMigrationError(hkerrors.CodeSchemaProbeFailed, "failed to scan index name", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// countTiers fills the tier counts in the stats.
func (s *EventStore) countTiers(ctx context.Context, stats *MigrationStats) error {
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&stats.TotalEvents); err != nil {
		return hkerrors.NewMigrationError(hkerrors.CodeSchemaProbeFailed, "failed to count events", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE priority > 0").Scan(&stats.PriorityEvents); err != nil {
		return hkerrors.NewMigrationError(hkerrors.CodeSchemaProbeFailed, "failed to count priority events", err)
	}
	stats.RegularEvents = stats.TotalEvents - stats.PriorityEvents
	return nil
}
