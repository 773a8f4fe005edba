// Package store provides the durable, append-only SQLite log of observed
// events and fired alerts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ransomwatch/internal/model"
)

// Schema for the ransomwatch log.
const schema = `
CREATE TABLE IF NOT EXISTS events (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp_ns    INTEGER NOT NULL,
    ts              TEXT NOT NULL,
    type            TEXT NOT NULL,
    src_path        TEXT NOT NULL,
    dest_path       TEXT NOT NULL DEFAULT '',
    ext_before      TEXT NOT NULL DEFAULT '',
    ext_after       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp_ns);
CREATE INDEX IF NOT EXISTS idx_events_src ON events(src_path, timestamp_ns);

CREATE TABLE IF NOT EXISTS alerts (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    alert_id        TEXT NOT NULL UNIQUE,
    timestamp_ns    INTEGER NOT NULL,
    ts              TEXT NOT NULL,
    rule            TEXT NOT NULL,
    severity        TEXT NOT NULL,
    details         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp_ns);
CREATE INDEX IF NOT EXISTS idx_alerts_rule ON alerts(rule);
`

// Store represents the SQLite event and alert log.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and applies
// the schema.
func Open(path string) (*Store, error) {
	return OpenWithTimeout(path, 5*time.Second)
}

// OpenWithTimeout is Open with an explicit SQLite busy timeout.
func OpenWithTimeout(path string, busy time.Duration) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, busy.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WriteEvent appends ev to the event log.
func (s *Store) WriteEvent(ctx context.Context, ev model.CanonicalEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (timestamp_ns, ts, type, src_path, dest_path, ext_before, ext_after)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.Timestamp.UnixNano(), model.FormatTimestamp(ev.Timestamp), string(ev.Kind),
		ev.SrcPath, ev.DestPath, ev.ExtBefore, ev.ExtAfter,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// WriteAlert appends a to the alert log.
func (s *Store) WriteAlert(ctx context.Context, a model.Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (alert_id, timestamp_ns, ts, rule, severity, details)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Timestamp.UnixNano(), model.FormatTimestamp(a.Timestamp),
		string(a.Rule), string(a.Severity), a.Details,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit of the newest events, oldest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]model.CanonicalEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp_ns, type, src_path, dest_path, ext_before, ext_after
		FROM (SELECT * FROM events ORDER BY id DESC LIMIT ?) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []model.CanonicalEvent
	for rows.Next() {
		var ev model.CanonicalEvent
		var tsNs int64
		var kind string
		if err := rows.Scan(&tsNs, &kind, &ev.SrcPath, &ev.DestPath, &ev.ExtBefore, &ev.ExtAfter); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Timestamp = time.Unix(0, tsNs)
		ev.Kind = model.Kind(kind)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// RecentAlerts returns up to limit of the newest alerts, oldest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT alert_id, timestamp_ns, rule, severity, details
		FROM (SELECT * FROM alerts ORDER BY id DESC LIMIT ?) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		var tsNs int64
		var rule, severity string
		if err := rows.Scan(&a.ID, &tsNs, &rule, &severity, &a.Details); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Timestamp = time.Unix(0, tsNs)
		a.Rule = model.Rule(rule)
		a.Severity = model.Severity(severity)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// AlertCounts returns the number of alerts logged per rule.
func (s *Store) AlertCounts(ctx context.Context) (map[model.Rule]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT rule, COUNT(*) FROM alerts GROUP BY rule`)
	if err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Rule]int)
	for rows.Next() {
		var rule string
		var n int
		if err := rows.Scan(&rule, &n); err != nil {
			return nil, fmt.Errorf("scan alert count: %w", err)
		}
		counts[model.Rule(rule)] = n
	}
	return counts, rows.Err()
}

// EventCount returns the total number of logged events.
func (s *Store) EventCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
