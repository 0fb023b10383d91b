// Package auditlog persists plugin lifecycle transitions to SQLite so a
// deployment can answer "what happened to this plugin and when" after the
// fact.
package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Transition is one recorded lifecycle state change.
type Transition struct {
	ID        int64
	Plugin    string
	FromState string
	ToState   string
	Cause     string
	Timestamp time.Time
}

// SQLiteJournal implements the manager's transition journal on SQLite.
// Use ":memory:" for an in-memory journal, or a file path for persistence.
type SQLiteJournal struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteJournal opens (and creates if needed) the journal database.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	j := &SQLiteJournal{db: db}
	if err := j.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plugin TEXT NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		cause TEXT,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transitions_plugin ON transitions(plugin);
	CREATE INDEX IF NOT EXISTS idx_transitions_timestamp ON transitions(timestamp);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record appends one lifecycle transition.
func (j *SQLiteJournal) Record(ctx context.Context, plugin, fromState, toState string, cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var causeText string
	if cause != nil {
		causeText = cause.Error()
	}

	_, err := j.db.ExecContext(ctx,
		"INSERT INTO transitions (plugin, from_state, to_state, cause, timestamp) VALUES (?, ?, ?, ?, ?)",
		plugin, fromState, toState, causeText, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// History returns all transitions for one plugin in recording order.
func (j *SQLiteJournal) History(ctx context.Context, plugin string) ([]Transition, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx,
		"SELECT id, plugin, from_state, to_state, cause, timestamp FROM transitions WHERE plugin = ? ORDER BY id",
		plugin,
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	return scanTransitions(rows)
}

// Recent returns the latest n transitions across all plugins, newest first.
func (j *SQLiteJournal) Recent(ctx context.Context, n int) ([]Transition, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx,
		"SELECT id, plugin, from_state, to_state, cause, timestamp FROM transitions ORDER BY id DESC LIMIT ?",
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	return scanTransitions(rows)
}

func scanTransitions(rows *sql.Rows) ([]Transition, error) {
	var out []Transition
	for rows.Next() {
		var tr Transition
		var ts int64
		if err := rows.Scan(&tr.ID, &tr.Plugin, &tr.FromState, &tr.ToState, &tr.Cause, &ts); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.Timestamp = time.Unix(0, ts)
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (j *SQLiteJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.db.Close()
}
