/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	applog "imgannotate/internal/log"
	"imgannotate/internal/undo"
	"imgannotate/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// schemaVersion tracks the journal schema. Bump it when you perform breaking
// schema changes and add a migration step.
const schemaVersion = 2

// language=SQL
// dialect=SQLite
const insertCheckpointSQL = `INSERT INTO checkpoints(session, checkpoint_id, type, target, ts, blob) VALUES (?, ?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestCheckpointSQL = `SELECT blob FROM checkpoints WHERE session = ? ORDER BY id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listCheckpointsSQL = `SELECT id, ts, blob FROM checkpoints WHERE session = ? ORDER BY id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const listSessionsSQL = `SELECT session, MAX(id) AS last FROM checkpoints GROUP BY session ORDER BY last DESC`

// language=SQL
// dialect=SQLite
const pruneOldCheckpointsSQL = `DELETE FROM checkpoints WHERE session = ? AND id NOT IN (
	SELECT id FROM checkpoints WHERE session = ? ORDER BY id DESC LIMIT ?
)`

// Journal persists undo checkpoints per editing session in SQLite.
type Journal struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// JournalEntry is one stored checkpoint.
type JournalEntry struct {
	Seq        int64
	TS         time.Time
	Checkpoint undo.Checkpoint
}

// NewSessionID returns a fresh journal session id.
func NewSessionID() string { return uuid.NewString() }

// OpenJournal opens (creating if needed) the journal database at path,
// enables WAL mode and brings the schema up to date.
func OpenJournal(path string) (*Journal, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "journal_open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	// Convert to forward slashes for the SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureJournalSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure journal schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("journal ready")
	return &Journal{db: db, path: path, log: applog.WithComponent("storage")}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Path returns the database file.
func (j *Journal) Path() string { return j.path }

// Append stores cp under session.
func (j *Journal) Append(ctx context.Context, session string, cp undo.Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	blob, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	ts := cp.TS
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = j.db.ExecContext(ctx, insertCheckpointSQL, session, cp.ID, cp.Type, cp.Target(), ts.UTC().Format(time.RFC3339Nano), blob)
	if err != nil {
		return fmt.Errorf("append checkpoint: %w", err)
	}
	return nil
}

// Latest returns the newest checkpoint of session; ok is false when there is none.
func (j *Journal) Latest(ctx context.Context, session string) (undo.Checkpoint, bool, error) {
	var blob []byte
	err := j.db.QueryRowContext(ctx, selectLatestCheckpointSQL, session).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return undo.Checkpoint{}, false, nil
	}
	if err != nil {
		return undo.Checkpoint{}, false, err
	}
	var cp undo.Checkpoint
	if err := json.Unmarshal(blob, &cp); err != nil {
		return undo.Checkpoint{}, false, fmt.Errorf("decode checkpoint: %w", err)
	}
	return cp, true, nil
}

// List returns up to limit most recent checkpoints of session, newest first.
func (j *Journal) List(ctx context.Context, session string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, listCheckpointsSQL, session, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []JournalEntry
	for rows.Next() {
		var (
			e     JournalEntry
			tsStr string
			blob  []byte
		)
		if err := rows.Scan(&e.Seq, &tsStr, &blob); err != nil {
			return nil, err
		}
		e.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
		if err := json.Unmarshal(blob, &e.Checkpoint); err != nil {
			return nil, fmt.Errorf("decode checkpoint %d: %w", e.Seq, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sessions lists the session ids in the journal, most recently written first.
func (j *Journal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, listSessionsSQL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var (
			s    string
			last int64
		)
		if err := rows.Scan(&s, &last); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Prune keeps at most keepLast checkpoints for session and deletes older ones.
func (j *Journal) Prune(ctx context.Context, session string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := j.db.ExecContext(ctx, pruneOldCheckpointsSQL, session, session, keepLast)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err == nil && n > 0 {
		j.log.Debug("journal pruned", slog.String("session", session), slog.Int64("removed", n))
	}
	return n, err
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// a fresh database starts at 1 and migrates from there
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Update app and timestamp only; keep existing schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureJournalSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			id            INTEGER PRIMARY KEY,
			session       TEXT    NOT NULL,
			checkpoint_id TEXT    NOT NULL,
			type          TEXT    NOT NULL,
			target        TEXT    NOT NULL,
			ts            TEXT    NOT NULL,
			blob          BLOB    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session, id);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure journal schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{`CREATE INDEX IF NOT EXISTS idx_checkpoints_target ON checkpoints(target);`}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// SchemaVersion reads the stored schema version.
func (j *Journal) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := j.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}
