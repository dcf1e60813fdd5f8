package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hookstream/hookstream/internal/classify"
	hkerrors "github.com/hookstream/hookstream/internal/errors"
	"github.com/hookstream/hookstream/internal/sessionindex"
	"github.com/hookstream/hookstream/pkg/types"
)

const eventColumns = `id, source_app, session_id, hook_event_type, payload, chat, summary, timestamp, priority, priority_metadata`

// EventStore is the SQLite-backed event log.
//
// It follows the single-writer/concurrent-reader model: one write connection
// (WAL mode, busy timeout) guarded by a mutex, and a read-only connection pool
// for queries. Inserts and retention queries are short synchronous operations;
// an inserted event is visible to the next query with no asynchronous hand-off.
type EventStore struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
	mu     sync.Mutex // Write-only lock (reads don't need this)

	insertStmt *sql.Stmt

	// sessions tracks which session ids have ever produced an event, so
	// session-scoped queries and subscriptions can skip the database for
	// sessions that definitely do not exist.
	sessions *sessionindex.Index

	migration MigrationStats

	// now is swappable for retention-window tests.
	now func() time.Time
}

// Open opens (or creates) the event database at dbPath, runs the priority
// migration, and prepares the store for serving.
func Open(dbPath string) (*EventStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, hkerrors.NewStoreError(hkerrors.CodeOpenFailed, "failed to open database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &EventStore{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	stats, err := s.migrate(context.Background())
	if err != nil {
		db.Close()
		return nil, err
	}
	s.migration = stats

	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, hkerrors.NewStoreError(hkerrors.CodeOpenFailed, "failed to open read database", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	s.readDB = readDB

	insertStmt, err := db.Prepare(`
		INSERT INTO events (
			source_app, session_id, hook_event_type,
			payload, chat, summary, timestamp,
			priority, priority_metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		readDB.Close()
		db.Close()
		return nil, hkerrors.NewStoreError(hkerrors.CodeOpenFailed, "failed to prepare insert statement", err)
	}
	s.insertStmt = insertStmt

	if err := s.buildSessionIndex(context.Background()); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// MigrationStats returns the statistics from the migration run at Open.
func (s *EventStore) MigrationStats() MigrationStats {
	return s.migration
}

// buildSessionIndex seeds the session membership filter from existing rows.
func (s *EventStore) buildSessionIndex(ctx context.Context) error {
	var distinct int
	if err := s.readDB.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT session_id) FROM events",
	).Scan(&distinct); err != nil {
		return fmt.Errorf("store: failed to count sessions: %w", err)
	}

	// Size for growth beyond the current population.
	capacity := distinct*2 + 1024
	s.sessions = sessionindex.New(capacity, 0.01)

	rows, err := s.readDB.QueryContext(ctx, "SELECT DISTINCT session_id FROM events")
	if err != nil {
		return fmt.Errorf("store: failed to enumerate sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("store: failed to scan session id: %w", err)
		}
		s.sessions.Add(id)
	}
	return rows.Err()
}

// SessionSeen reports whether the session may have produced events.
func (s *EventStore) SessionSeen(sessionID string) bool {
	return s.sessions.MightContain(sessionID)
}

// Insert appends an event. The priority tier is derived from the event kind;
// a missing or non-positive timestamp is replaced with ingestion time. The
// stored event (with assigned id) is returned.
func (s *EventStore) Insert(ctx context.Context, draft types.EventDraft) (*types.Event, error) {
	if draft.SourceApp == "" {
		return nil, hkerrors.NewValidationError(hkerrors.CodeInvalidEvent, "source_app is required")
	}
	if draft.SessionID == "" {
		return nil, hkerrors.NewValidationError(hkerrors.CodeMissingSessionID, "session_id is required")
	}
	if draft.HookEventType == "" {
		return nil, hkerrors.NewValidationError(hkerrors.CodeInvalidEvent, "hook_event_type is required")
	}

	evt := types.Event{
		SourceApp:     draft.SourceApp,
		SessionID:     draft.SessionID,
		HookEventType: draft.HookEventType,
		Payload:       draft.Payload,
		Chat:          draft.Chat,
		Summary:       draft.Summary,
		Timestamp:     draft.Timestamp,
	}
	if evt.Timestamp <= 0 {
		evt.Timestamp = s.now().UnixMilli()
	}
	if len(evt.Payload) == 0 {
		evt.Payload = json.RawMessage("{}")
	}

	evt.Priority = classify.Classify(evt.HookEventType)
	var metadataJSON interface{}
	if evt.Priority > 0 {
		evt.PriorityMetadata = classify.Metadata(types.ReasonAutomatic)
		data, err := json.Marshal(evt.PriorityMetadata)
		if err != nil {
			return nil, hkerrors.NewInternalError("failed to marshal priority metadata", err)
		}
		metadataJSON = string(data)
	}

	var chatBlob interface{}
	if len(evt.Chat) > 0 {
		chatBlob = snappy.Encode(nil, evt.Chat)
	}
	var summary interface{}
	if evt.Summary != "" {
		summary = evt.Summary
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.insertStmt.ExecContext(ctx,
		evt.SourceApp, evt.SessionID, evt.HookEventType,
		string(evt.Payload), chatBlob, summary, evt.Timestamp,
		evt.Priority, metadataJSON,
	)
	if err != nil {
		return nil, hkerrors.NewStoreError(hkerrors.CodeInsertFailed, "failed to insert event", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, hkerrors.NewStoreError(hkerrors.CodeInsertFailed, "failed to read inserted id", err)
	}
	evt.ID = id

	s.sessions.Add(evt.SessionID)
	return &evt, nil
}

// RecentEvents runs the dual-bucket retention query: up to PriorityLimit
// priority events within their retention window and up to RegularLimit
// regular events within theirs, merged and returned ascending by timestamp
// after intelligent limiting.
func (s *EventStore) RecentEvents(ctx context.Context, cfg RetentionConfig) ([]types.Event, error) {
	cfg = cfg.Normalize()
	priorityCutoff, regularCutoff := cfg.cutoffs(s.now())

	priority, err := s.queryBucket(ctx, 1, priorityCutoff, cfg.PriorityLimit)
	if err != nil {
		return nil, err
	}
	regular, err := s.queryBucket(ctx, 0, regularCutoff, cfg.RegularLimit)
	if err != nil {
		return nil, err
	}

	merged := append(priority, regular...)
	if merged == nil {
		return []types.Event{}, nil
	}
	sortEventsAscending(merged)
	return limitEvents(merged, cfg.TotalLimit), nil
}

// queryBucket fetches the newest events of one priority tier no older than
// the cutoff. The (priority, timestamp) index keeps this scan index-only.
func (s *EventStore) queryBucket(ctx context.Context, tier int, cutoff int64, limit int) ([]types.Event, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE priority = ? AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		tier, cutoff, limit,
	)
	if err != nil {
		return nil, hkerrors.NewQueryError(hkerrors.CodeScanFailed, "failed to query events", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// SessionEvents returns the full matching event set for a session, ascending
// by timestamp, applying the per-tier retention windows and an optional
// event-type allow-list. No total cap is applied: session timelines need
// completeness more than bounded size.
func (s *EventStore) SessionEvents(ctx context.Context, sessionID string, eventTypes []string, cfg RetentionConfig) ([]types.Event, error) {
	if sessionID == "" {
		return nil, hkerrors.NewValidationError(hkerrors.CodeMissingSessionID, "session_id is required")
	}
	cfg = cfg.Normalize()

	// Definitive negative from the membership filter: the session has never
	// produced an event, skip the database.
	if !s.sessions.MightContain(sessionID) {
		return []types.Event{}, nil
	}

	priorityCutoff, regularCutoff := cfg.cutoffs(s.now())

	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE session_id = ?
		  AND ((priority = 1 AND timestamp >= ?) OR (priority = 0 AND timestamp >= ?))`
	args := []interface{}{sessionID, priorityCutoff, regularCutoff}

	if len(eventTypes) > 0 {
		query += " AND hook_event_type IN (?" + repeatPlaceholder(len(eventTypes)-1) + ")"
		for _, t := range eventTypes {
			args = append(args, t)
		}
	}
	query += " ORDER BY timestamp ASC, id ASC"

	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, hkerrors.NewQueryError(hkerrors.CodeScanFailed, "failed to query session events", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []types.Event{}
	}
	return events, nil
}

// Stats summarizes the retention-windowed view of the store.
type Stats struct {
	TotalEvents    int64           `json:"total_events"`
	PriorityEvents int64           `json:"priority_events"`
	RegularEvents  int64           `json:"regular_events"`
	RetentionWnd   RetentionWindow `json:"retention_window"`
}

// RetentionWindow describes the per-tier visibility windows in effect.
type RetentionWindow struct {
	PriorityHours int `json:"priority_hours"`
	RegularHours  int `json:"regular_hours"`
}

// Stats counts the currently-visible events per tier.
func (s *EventStore) Stats(ctx context.Context, cfg RetentionConfig) (*Stats, error) {
	cfg = cfg.Normalize()
	priorityCutoff, regularCutoff := cfg.cutoffs(s.now())

	var priorityCount, regularCount int64
	if err := s.readDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE priority = 1 AND timestamp >= ?", priorityCutoff,
	).Scan(&priorityCount); err != nil {
		return nil, hkerrors.NewQueryError(hkerrors.CodeScanFailed, "failed to count priority events", err)
	}
	if err := s.readDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE priority = 0 AND timestamp >= ?", regularCutoff,
	).Scan(&regularCount); err != nil {
		return nil, hkerrors.NewQueryError(hkerrors.CodeScanFailed, "failed to count regular events", err)
	}

	return &Stats{
		TotalEvents:    priorityCount + regularCount,
		PriorityEvents: priorityCount,
		RegularEvents:  regularCount,
		RetentionWnd: RetentionWindow{
			PriorityHours: cfg.PriorityRetentionHours,
			RegularHours:  cfg.RegularRetentionHours,
		},
	}, nil
}

// RunAnalyze refreshes SQLite query planner statistics. Call after bulk loads.
func (s *EventStore) RunAnalyze(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, AnalyzeSQL); err != nil {
		return fmt.Errorf("store: failed to run ANALYZE: %w", err)
	}
	return nil
}

// Close closes both database connections.
func (s *EventStore) Close() error {
	if s.insertStmt != nil {
		s.insertStmt.Close()
	}
	if s.readDB != nil {
		if err := s.readDB.Close(); err != nil {
			s.db.Close()
			return err
		}
	}
	return s.db.Close()
}

// scanEvents reads event rows, decompressing chat blobs.
func scanEvents(rows *sql.Rows) ([]types.Event, error) {
	var events []types.Event
	for rows.Next() {
		var (
			evt          types.Event
			payload      string
			chat         []byte
			summary      sql.NullString
			metadataJSON sql.NullString
		)
		if err := rows.Scan(
			&evt.ID, &evt.SourceApp, &evt.SessionID, &evt.HookEventType,
			&payload, &chat, &summary, &evt.Timestamp,
			&evt.Priority, &metadataJSON,
		); err != nil {
			return nil, hkerrors.NewQueryError(hkerrors.CodeScanFailed, "failed to scan event", err)
		}

		evt.Payload = json.RawMessage(payload)
		if summary.Valid {
			evt.Summary = summary.String
		}
		if len(chat) > 0 {
			decoded, err := snappy.Decode(nil, chat)
			if err != nil {
				return nil, hkerrors.NewQueryError(hkerrors.CodeScanFailed, "failed to decompress chat", err)
			}
			evt.Chat = decoded
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			var meta types.PriorityMetadata
			if err := json.Unmarshal([]byte(metadataJSON.String), &meta); err == nil {
				evt.PriorityMetadata = &meta
			}
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, hkerrors.NewQueryError(hkerrors.CodeScanFailed, "error iterating events", err)
	}
	return events, nil
}

// repeatPlaceholder returns n copies of ",?" for IN clauses.
func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ",?"
	}
	return out
}
