/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "cardsmith/internal/log"
	"cardsmith/internal/version"

	"github.com/google/uuid"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// BlobScheme prefixes every image source that points into the store.
	BlobScheme = "blob:"

	// schemaVersion tracks the blob database schema.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// ErrNotFound is returned for blob ids the store does not hold.
var ErrNotFound = errors.New("blob not found")

// Store keeps uploaded image bytes for the lifetime of the images that use
// them. Each blob carries a reference count; Release deletes it at zero.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates or opens the blob database at path, enables WAL mode and
// brings the schema up to date.
func Open(ctx context.Context, path string) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "blobs_open").With(
		slog.String("path", path),
	)
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("blob store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create blob dir: %w", err)
	}

	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
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
	if err := ensureBlobSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure blob schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("blob store ready")
	return &Store{db: db, log: applog.WithComponent("storage").With(slog.String("path", path))}, nil
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
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// A fresh database starts at v1 and migrates forward like any other.
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureBlobSchema(ctx context.Context, db *sql.DB) error {
	const q = `CREATE TABLE IF NOT EXISTS blobs (
		id          TEXT PRIMARY KEY,
		mime        TEXT NOT NULL,
		data        BLOB NOT NULL,
		refs        INTEGER NOT NULL DEFAULT 1,
		created_at  TEXT NOT NULL
	);`
	if _, err := db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create blobs: %w", err)
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
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_blobs_refs ON blobs(refs);`,
				`CREATE TABLE IF NOT EXISTS card_snapshots (
					id       INTEGER PRIMARY KEY AUTOINCREMENT,
					card_id  INTEGER NOT NULL,
					ts       TEXT NOT NULL,
					doc      BLOB NOT NULL
				);`,
				`CREATE INDEX IF NOT EXISTS idx_card_snapshots_card ON card_snapshots(card_id, id);`,
			}
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

// URL is the image source for blob id.
func URL(id string) string { return BlobScheme + id }

// ParseURL extracts the blob id from an image source. It reports false for
// sources that do not point into a store.
func ParseURL(src string) (string, bool) {
	id, ok := strings.CutPrefix(src, BlobScheme)
	if !ok {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// Put stores data with one reference and returns its id.
func (s *Store) Put(ctx context.Context, mime string, data []byte) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, `INSERT INTO blobs (id, mime, data, refs, created_at) VALUES(?, ?, ?, 1, ?)`, id, mime, data, now); err != nil {
		return "", fmt.Errorf("put blob: %w", err)
	}
	s.log.Debug("blob stored", slog.String("id", id), slog.String("mime", mime), slog.Int("bytes", len(data)))
	return id, nil
}

// Get returns the mime type and bytes of blob id.
func (s *Store) Get(ctx context.Context, id string) (mime string, data []byte, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT mime, data FROM blobs WHERE id=?`, id).Scan(&mime, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return "", nil, fmt.Errorf("get blob: %w", err)
	}
	return mime, data, nil
}

// Retain adds a reference to blob id.
func (s *Store) Retain(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE blobs SET refs = refs + 1 WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("retain blob: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Release drops a reference to blob id and deletes the blob once nothing
// refers to it. It reports whether the blob was deleted.
func (s *Store) Release(ctx context.Context, id string) (deleted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin release: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	var refs int
	if err = tx.QueryRowContext(ctx, `SELECT refs FROM blobs WHERE id=?`, id).Scan(&refs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("%w: %s", ErrNotFound, id)
			return false, err
		}
		err = fmt.Errorf("read refs: %w", err)
		return false, err
	}
	if refs <= 1 {
		if _, err = tx.ExecContext(ctx, `DELETE FROM blobs WHERE id=?`, id); err != nil {
			err = fmt.Errorf("delete blob: %w", err)
			return false, err
		}
		deleted = true
	} else if _, err = tx.ExecContext(ctx, `UPDATE blobs SET refs = refs - 1 WHERE id=?`, id); err != nil {
		err = fmt.Errorf("release blob: %w", err)
		return false, err
	}
	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit release: %w", err)
		return false, err
	}
	if deleted {
		s.log.Debug("blob deleted", slog.String("id", id))
	}
	return deleted, nil
}

// Count returns the number of stored blobs.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count blobs: %w", err)
	}
	return n, nil
}

// SchemaVersion reports the schema the database is at.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func (s *Store) Close() error { return s.db.Close() }
