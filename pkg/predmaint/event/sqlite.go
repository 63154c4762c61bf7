package event

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteDLQ persists dead letters to SQLite so operator diagnostics survive
// process restarts. It is suitable for single-process production use.
type SQLiteDLQ struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteDLQ creates a SQLite-backed dead letter queue.
// The path should be a file path (e.g., "./deadletters.db") or ":memory:"
// for testing.
func NewSQLiteDLQ(path string) (*SQLiteDLQ, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dead_letters (
			event_id TEXT NOT NULL,
			handler TEXT NOT NULL,
			event_type TEXT NOT NULL,
			correlation_id TEXT NOT NULL,
			payload BLOB,
			error_message TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			exhausted_at TEXT NOT NULL,
			PRIMARY KEY (event_id, handler)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_dead_letters_type
		ON dead_letters(event_type)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteDLQ{db: db}, nil
}

// ErrDLQClosed is returned by operations on a closed store.
var ErrDLQClosed = &EventError{Message: "dead letter store is closed"}

// Append implements DeadLetterQueue.
func (q *SQLiteDLQ) Append(ctx context.Context, dl *DeadLetter) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrDLQClosed
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO dead_letters
			(event_id, handler, event_type, correlation_id, payload, error_message, attempts, exhausted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, dl.EventID, dl.Handler, string(dl.EventType), dl.CorrelationID, dl.Payload,
		dl.ErrorMessage, dl.Attempts, dl.ExhaustedAt.UTC().Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("append dead letter: %w", err)
	}
	return nil
}

// List implements DeadLetterQueue. Records are returned oldest first.
func (q *SQLiteDLQ) List(ctx context.Context, limit int) ([]*DeadLetter, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrDLQClosed
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT event_id, handler, event_type, correlation_id, payload, error_message, attempts, exhausted_at
		FROM dead_letters
		ORDER BY exhausted_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []*DeadLetter
	for rows.Next() {
		var dl DeadLetter
		var eventType, exhaustedAt string
		if err := rows.Scan(&dl.EventID, &dl.Handler, &eventType, &dl.CorrelationID,
			&dl.Payload, &dl.ErrorMessage, &dl.Attempts, &exhaustedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		dl.EventType = Type(eventType)
		if ts, err := time.Parse(time.RFC3339Nano, exhaustedAt); err == nil {
			dl.ExhaustedAt = ts
		}
		out = append(out, &dl)
	}
	return out, rows.Err()
}

// Count implements DeadLetterQueue.
func (q *SQLiteDLQ) Count(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, ErrDLQClosed
	}

	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return n, nil
}

// CountByType implements DeadLetterQueue.
func (q *SQLiteDLQ) CountByType(ctx context.Context) (map[Type]int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrDLQClosed
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) FROM dead_letters GROUP BY event_type
	`)
	if err != nil {
		return nil, fmt.Errorf("count dead letters by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[Type]int)
	for rows.Next() {
		var eventType string
		var n int
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Type(eventType)] = n
	}
	return counts, rows.Err()
}

// Delete implements DeadLetterQueue.
func (q *SQLiteDLQ) Delete(ctx context.Context, eventID, handler string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrDLQClosed
	}

	res, err := q.db.ExecContext(ctx, `
		DELETE FROM dead_letters WHERE event_id = ? AND handler = ?
	`, eventID, handler)
	if err != nil {
		return fmt.Errorf("delete dead letter: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &EventError{EventID: eventID, Handler: handler, Message: "dead letter not found"}
	}
	return nil
}

// Close releases the underlying database.
func (q *SQLiteDLQ) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	return q.db.Close()
}
