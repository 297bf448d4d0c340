// Package history persists chat traffic in a local SQLite database.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one recorded chat message.
type Entry struct {
	ID     int64
	Sender string
	Body   string
	SentAt time.Time
}

// Log is an append-only message log. It is safe for concurrent use;
// database/sql funnels all access through a single connection.
type Log struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	sender  TEXT NOT NULL,
	body    TEXT NOT NULL,
	sent_at TIMESTAMP NOT NULL
);`

// Open opens or creates the log at path. Use ":memory:" for an ephemeral
// log.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// SQLite allows a single writer, and in-memory databases exist per
	// connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Record appends one message. It implements chat.Recorder.
func (l *Log) Record(sender, body string) error {
	_, err := l.db.Exec(
		`INSERT INTO messages (sender, body, sent_at) VALUES (?, ?, ?)`,
		sender, body, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

// Recent returns up to n of the most recent entries in chronological order.
func (l *Log) Recent(n int) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT id, sender, body, sent_at FROM messages ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Sender, &e.Body, &e.SentAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Close releases the database handle.
func (l *Log) Close() error {
	return l.db.Close()
}
