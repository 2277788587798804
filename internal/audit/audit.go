// Package audit provides a SQLite-backed trail of palm operations.
//
// Every register, recognize and delete is recorded with its outcome so
// operators can review who matched what and when. Recording is
// best-effort: an audit failure must never fail the user operation.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Command names recorded in the trail.
const (
	CommandRegister  = "register"
	CommandRecognize = "recognize"
	CommandDelete    = "delete"
)

// Event is one recorded palm operation.
type Event struct {
	ID        string
	Command   string
	Identity  string
	Matched   bool
	Distance  float64
	Threshold float64
	CreatedAt time.Time
}

// Log represents a SQLite database connection for the audit trail.
type Log struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the audit database at the given path and runs
// migrations.
func Open(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	l := &Log{
		db:   db,
		path: dbPath,
	}

	if err := l.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run audit migrations: %w", err)
	}

	return l, nil
}

// Close closes the database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

// runMigrations executes all database migrations.
func (l *Log) runMigrations() error {
	migrations := []string{
		// Events table - one row per palm operation
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL CHECK(command IN ('register', 'recognize', 'delete')),
			identity TEXT NOT NULL DEFAULT '',
			matched INTEGER NOT NULL DEFAULT 0,
			distance REAL NOT NULL DEFAULT 0,
			threshold REAL NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_identity ON events(identity)`,
		`CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := l.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

// Record inserts an event. The ID and CreatedAt fields are filled in.
func (l *Log) Record(e *Event) error {
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()

	matched := 0
	if e.Matched {
		matched = 1
	}

	_, err := l.db.Exec(
		`INSERT INTO events (id, command, identity, matched, distance, threshold, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Command, e.Identity, matched, e.Distance, e.Threshold, e.CreatedAt,
	)
	if err != nil {
		return err
	}

	return nil
}

// Recent retrieves the most recent events, newest first.
func (l *Log) Recent(limit int) ([]*Event, error) {
	rows, err := l.db.Query(
		`SELECT id, command, identity, matched, distance, threshold, created_at
		 FROM events ORDER BY created_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var matched int

		err := rows.Scan(&e.ID, &e.Command, &e.Identity, &matched, &e.Distance, &e.Threshold, &e.CreatedAt)
		if err != nil {
			return nil, err
		}

		e.Matched = matched != 0
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
