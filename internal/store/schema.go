// Package store provides the SQLite-backed event store: an append-only event
// log with priority-aware retention queries, schema migration, and
// rollback/restore of priority classifications.
package store

// Schema contains the SQL definitions for the event database (events.db).
// The event log is the source of truth for everything served by the query
// surface and rebroadcast to observers.

// CreateEventsTableSQL creates the event log table. Legacy databases created
// before priority tiering lack the priority and priority_metadata columns;
// the migration adds them in place.
const CreateEventsTableSQL = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_app TEXT NOT NULL,
    session_id TEXT NOT NULL,
    hook_event_type TEXT NOT NULL,
    payload TEXT NOT NULL,
    chat BLOB,
    summary TEXT,
    timestamp INTEGER NOT NULL,
    priority INTEGER NOT NULL DEFAULT 0,
    priority_metadata TEXT
)`

// CreateEventIndexesSQL creates the compound indexes that keep priority-first,
// timestamp-ordered scans index-only. All three lead with the columns the
// retention queries filter on.
var CreateEventIndexesSQL = []string{
	// Priority-bucket retention scans
	`CREATE INDEX IF NOT EXISTS idx_events_priority_time ON events(priority, timestamp)`,

	// Session-scoped retention scans
	`CREATE INDEX IF NOT EXISTS idx_events_session_priority_time ON events(session_id, priority, timestamp)`,

	// Event-type filtered scans
	`CREATE INDEX IF NOT EXISTS idx_events_type_priority_time ON events(hook_event_type, priority, timestamp)`,
}

// CreatePriorityBackupTableSQL creates the priority backup table. It holds at
// most one live snapshot: the rows written by the most recent rollback, each
// capturing the prior tier of a previously-priority event. Restore consumes
// the snapshot; an empty table means no rollback is pending.
const CreatePriorityBackupTableSQL = `
CREATE TABLE IF NOT EXISTS priority_backup (
    snapshot_version INTEGER NOT NULL,
    event_id INTEGER NOT NULL,
    priority INTEGER NOT NULL,
    priority_metadata TEXT,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (snapshot_version, event_id)
)`

// AnalyzeSQL keeps the SQLite query planner informed about index statistics.
const AnalyzeSQL = `ANALYZE`

// AllSchemaSQL returns all SQL statements needed to initialize the event
// database. Index creation is owned by the migration so that index presence
// can be probed and reported.
func AllSchemaSQL() []string {
	return []string{
		CreateEventsTableSQL,
		CreatePriorityBackupTableSQL,
	}
}
