package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS activity_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	event      TEXT NOT NULL,
	track_id   TEXT,
	title      TEXT,
	payload    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_events_event ON activity_events(event);
`

// SQLiteSink appends records to a local activity_events table. Rows are
// never updated or deleted.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// SQLite has a single writer; concurrent sends queue on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Send(ctx context.Context, r Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.Event, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO activity_events (event, track_id, title, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.Event, r.TrackID, r.Title, string(payload), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert %s: %w", r.Event, err)
	}
	return nil
}

// Count returns how many rows exist for event ("" counts all rows).
func (s *SQLiteSink) Count(ctx context.Context, event string) (int, error) {
	var n int
	var err error
	if event == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_events`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_events WHERE event = ?`, event).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *SQLiteSink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
