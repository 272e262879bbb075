package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"

	_ "modernc.org/sqlite"
)

const selectColumns = "SELECT id, task_id, remote_path, event_type, timestamp_ms, payload, blob_sha FROM events"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the history database.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryEventStore, ErrDatabaseOpenFailed.Message()).
				WithContext("path", dbPath).Build()
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryEventStore, ErrDatabaseOpenFailed.Message()).
			WithContext("path", dbPath).Build()
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryEventStore, ErrInitializeSchemaFailed.Message()).Build()
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		remote_path TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp_ms INTEGER NOT NULL,
		payload BLOB NOT NULL,
		blob_sha TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_task_id ON events(task_id);
	CREATE INDEX IF NOT EXISTS idx_remote_path ON events(remote_path, id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp_ms);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds an event to the store.
func (s *SQLiteStore) Append(ctx context.Context, e Event) error {
	ts := e.Timestamp()
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (task_id, remote_path, event_type, timestamp_ms, payload, blob_sha) VALUES (?, ?, ?, ?, ?, ?)",
		e.TaskID(), e.RemotePath(), e.Type(), ts.UnixMilli(), e.Payload(), e.BlobSHA(),
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryEventStore, ErrEventAppendFailed.Message()).
			WithContext("task_id", e.TaskID()).Build()
	}
	return nil
}

// GetByTaskID retrieves all events recorded for one task.
func (s *SQLiteStore) GetByTaskID(ctx context.Context, taskID string) ([]Event, error) {
	return s.query(ctx, selectColumns+" WHERE task_id = ? ORDER BY id", taskID)
}

// GetRange retrieves events within a time range, oldest first.
func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	return s.query(ctx, selectColumns+" WHERE timestamp_ms >= ? AND timestamp_ms <= ? ORDER BY id",
		start.UnixMilli(), end.UnixMilli())
}

// Recent implements Store.
func (s *SQLiteStore) Recent(ctx context.Context, remotePath string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	if remotePath == "" {
		return s.query(ctx, selectColumns+" ORDER BY id DESC LIMIT ?", limit)
	}
	return s.query(ctx, selectColumns+" WHERE remote_path = ? ORDER BY id DESC LIMIT ?", remotePath, limit)
}

// LastPublishedBlob implements Store and publish.History.
func (s *SQLiteStore) LastPublishedBlob(ctx context.Context, remotePath string) (string, bool, error) {
	var sha string
	err := s.db.QueryRowContext(ctx,
		"SELECT blob_sha FROM events WHERE remote_path = ? AND event_type IN (?, ?) AND blob_sha != '' ORDER BY id DESC LIMIT 1",
		remotePath, TypePublishSucceeded, TypePublishSkipped,
	).Scan(&sha)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, ferrors.WrapError(err, ferrors.CategoryEventStore, ErrEventQueryFailed.Message()).Build()
	}
	return sha, true, nil
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryEventStore, ErrEventQueryFailed.Message()).Build()
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var e BaseEvent
		var tsMillis int64
		if err := rows.Scan(&e.EventID, &e.EventTaskID, &e.EventRemotePath, &e.EventType, &tsMillis, &e.EventPayload, &e.EventBlobSHA); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryEventStore, "failed to scan event rows").Build()
		}
		e.EventTimestamp = time.UnixMilli(tsMillis)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryEventStore, "failed to iterate event rows").Build()
	}
	return events, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
