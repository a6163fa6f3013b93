// Copyright 2025 EURECOM
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
//
// Contributors:
//   Giulio CAROTA
//   Thomas DU
//   Adlen KSENTINI

// Package history persists emitted network snapshots in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"gitlab.eurecom.fr/open-exposure/coresim/device-monitor/internal/models"
)

const DefaultLimit = 100

// Entry is one recorded snapshot.
type Entry struct {
	Id       int64                  `json:"id"`
	Instance string                 `json:"instance"`
	Snapshot models.NetworkSnapshot `json:"snapshot"`
}

type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "history: create db dir failed")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "history: open sqlite database failed")
	}
	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("path", path).Msg("history store opened")
	return s, nil
}

func configure(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Wrapf(err, "history: %s failed", pragma)
		}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		instance TEXT NOT NULL,
		captured_at INTEGER NOT NULL,
		connection_kind TEXT NOT NULL,
		sim_count INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_captured ON snapshots(captured_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, "history: migrate failed")
	}
	return nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a snapshot emitted by the given monitor instance.
func (s *Store) Record(ctx context.Context, instance string, snapshot models.NetworkSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "history: encode snapshot failed")
	}
	kind := models.ConnectionKindUnknown
	if snapshot.Connection != nil {
		kind = snapshot.Connection.Kind()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (instance, captured_at, connection_kind, sim_count, payload) VALUES (?, ?, ?, ?, ?)`,
		instance, snapshot.CapturedAt.UnixNano(), string(kind), len(snapshot.Sims), string(payload))
	if err != nil {
		return errors.Wrap(err, "history: insert snapshot failed")
	}
	return nil
}

// Latest returns up to limit entries, newest first.
func (s *Store) Latest(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, instance, payload FROM snapshots ORDER BY captured_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "history: query latest failed")
	}
	return scanEntries(rows)
}

// Since returns the entries captured at or after t, oldest first.
func (s *Store) Since(ctx context.Context, t time.Time) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, instance, payload FROM snapshots WHERE captured_at >= ? ORDER BY captured_at ASC, id ASC`, t.UnixNano())
	if err != nil {
		return nil, errors.Wrap(err, "history: query since failed")
	}
	return scanEntries(rows)
}

// Prune deletes entries captured before the given time and returns how
// many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE captured_at < ?`, before.UnixNano())
	if err != nil {
		return 0, errors.Wrap(err, "history: prune failed")
	}
	return res.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			payload string
		)
		if err := rows.Scan(&e.Id, &e.Instance, &payload); err != nil {
			return nil, errors.Wrap(err, "history: scan row failed")
		}
		if err := json.Unmarshal([]byte(payload), &e.Snapshot); err != nil {
			return nil, errors.Wrapf(err, "history: decode snapshot %d failed", e.Id)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "history: iterate rows failed")
	}
	return entries, nil
}
