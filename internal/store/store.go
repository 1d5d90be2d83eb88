// Package store provides SQLite-backed persistence for sessions, agents,
// iterations, and the deferred write buffer for high-volume log rows.
package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite connection.
type Store struct {
	db *sqlx.DB
}

// Open opens or creates a SQLite database at the given path and applies the
// schema. ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps :memory: databases coherent and serializes
	// writers, which SQLite wants anyway.
	conn.SetMaxOpenConns(1)

	s := &Store{db: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		idea TEXT NOT NULL DEFAULT '',
		stage TEXT NOT NULL DEFAULT 'idea-input',
		society_overview TEXT NOT NULL DEFAULT '',
		law TEXT NOT NULL DEFAULT '',
		time_scale TEXT NOT NULL DEFAULT '',
		total_iterations INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		background TEXT NOT NULL DEFAULT '',
		initial_wealth INTEGER NOT NULL,
		initial_health INTEGER NOT NULL,
		initial_happiness INTEGER NOT NULL,
		initial_cortisol INTEGER NOT NULL DEFAULT 30,
		initial_dopamine INTEGER NOT NULL DEFAULT 50,
		wealth INTEGER NOT NULL,
		health INTEGER NOT NULL,
		happiness INTEGER NOT NULL,
		cortisol INTEGER NOT NULL DEFAULT 30,
		dopamine INTEGER NOT NULL DEFAULT 50,
		alive INTEGER NOT NULL DEFAULT 1,
		central INTEGER NOT NULL DEFAULT 0,
		born_at_iteration INTEGER NOT NULL DEFAULT 0,
		died_at_iteration INTEGER
	);

	CREATE TABLE IF NOT EXISTS iterations (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		iteration_number INTEGER NOT NULL,
		narrative_summary TEXT NOT NULL DEFAULT '',
		statistics TEXT NOT NULL DEFAULT '{}',
		lifecycle_events TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_intents (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		iteration_id TEXT NOT NULL,
		intent TEXT NOT NULL DEFAULT '',
		reasoning TEXT NOT NULL DEFAULT '',
		action_code TEXT NOT NULL DEFAULT 'NONE',
		action_target TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS resolved_actions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		iteration_id TEXT NOT NULL,
		action TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL DEFAULT '{}',
		resolved_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agents_session ON agents(session_id);
	CREATE INDEX IF NOT EXISTS idx_iterations_session ON iterations(session_id, iteration_number);
	CREATE INDEX IF NOT EXISTS idx_intents_session ON agent_intents(session_id, iteration_id);
	CREATE INDEX IF NOT EXISTS idx_actions_session ON resolved_actions(session_id, iteration_id);
	`
	_, err := s.db.Exec(schema)
	return err
}
