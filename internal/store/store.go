// Package store persists UserState to SQLite. This is the host side of
// the engine's export/import contract: the engine itself does no I/O, so
// the owning process saves on events and restores at startup.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mkessler/bubble/internal/types"
)

// Store wraps the SQLite database holding persisted user state
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the state database under statePath
func Open(statePath string) (*Store, error) {
	dbPath := filepath.Join(statePath, "bubble.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS user_state (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			data       TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS state_log (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			saved_at   TEXT NOT NULL,
			focus_mode TEXT NOT NULL,
			budget_used INTEGER NOT NULL,
			history_len INTEGER NOT NULL
		);
	`)
	return err
}

// SaveUserState upserts the singleton state row and appends a summary to
// the state log for inspection
func (s *Store) SaveUserState(st *types.UserState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO user_state (id, data, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, string(data), now); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO state_log (saved_at, focus_mode, budget_used, history_len) VALUES (?, ?, ?, ?)
	`, now, string(st.Prefs.FocusMode), st.Budget.Daily.Used, len(st.History)); err != nil {
		return fmt.Errorf("failed to append state log: %w", err)
	}
	return tx.Commit()
}

// LoadUserState returns the persisted state, or nil if none was saved yet
func (s *Store) LoadUserState() (*types.UserState, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM user_state WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	var st types.UserState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &st, nil
}

// LastSaved returns when state was last persisted (zero if never)
func (s *Store) LastSaved() (time.Time, error) {
	var raw string
	err := s.db.QueryRow(`SELECT updated_at FROM user_state WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, raw)
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
