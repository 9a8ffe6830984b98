// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package history records published attribute changes so the control API
// can answer "what happened while I was away" without keeping the hub
// process alive forever.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"dila/internal/projector"
)

// Entry is one recorded attribute change.
type Entry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Name      string    `json:"name,omitempty"`
	Power     string    `json:"power"`
	Input     string    `json:"input,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// Store persists attribute changes to SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS attribute_changes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		power TEXT NOT NULL,
		input TEXT NOT NULL DEFAULT '',
		changed_at DATETIME NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_changes_session
		ON attribute_changes(session_id, changed_at DESC)`)
	return err
}

// Record appends one attribute change.
func (s *Store) Record(sessionID, name string, state projector.AttributeState) error {
	_, err := s.db.Exec(
		`INSERT INTO attribute_changes (session_id, name, power, input, changed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, name, string(state.Power), state.Input, state.LastUpdated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record change: %w", err)
	}
	return nil
}

// Recent returns the latest changes for a session, newest first.
func (s *Store) Recent(sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, session_id, name, power, input, changed_at
		 FROM attribute_changes
		 WHERE session_id = ?
		 ORDER BY changed_at DESC, id DESC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Name, &e.Power, &e.Input, &e.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
