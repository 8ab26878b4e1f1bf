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
	"time"
)

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO card_snapshots(card_id, ts, doc) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT ts, doc FROM card_snapshots WHERE card_id = ? ORDER BY id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT ts, doc FROM card_snapshots WHERE card_id = ? ORDER BY id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM card_snapshots WHERE card_id = ? AND id NOT IN (
	SELECT id FROM card_snapshots WHERE card_id = ? ORDER BY id DESC LIMIT ?
)`

// Snapshot is one saved card document.
type Snapshot struct {
	TS  time.Time
	Doc []byte
}

// SaveSnapshot stores doc as the newest snapshot of card id.
func (s *Store) SaveSnapshot(ctx context.Context, cardID int64, doc []byte, ts time.Time) error {
	if len(doc) == 0 {
		return errors.New("empty snapshot")
	}
	if _, err := s.db.ExecContext(ctx, insertSnapshotSQL, cardID, ts.UTC().Format(time.RFC3339Nano), doc); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot of a card, or nil if none.
func (s *Store) LatestSnapshot(ctx context.Context, cardID int64) (*Snapshot, error) {
	var tsStr string
	var doc []byte
	err := s.db.QueryRowContext(ctx, selectLatestSnapshotSQL, cardID).Scan(&tsStr, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	ts, _ := time.Parse(time.RFC3339Nano, tsStr)
	return &Snapshot{TS: ts, Doc: doc}, nil
}

// ListSnapshots returns up to limit most recent snapshots of a card, newest first.
func (s *Store) ListSnapshots(ctx context.Context, cardID int64, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, listSnapshotsSQL, cardID, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		var tsStr string
		var doc []byte
		if err := rows.Scan(&tsStr, &doc); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, Snapshot{TS: ts, Doc: doc})
	}
	return out, rows.Err()
}

// PruneSnapshots keeps at most keepLast snapshots of a card and deletes older ones.
func (s *Store) PruneSnapshots(ctx context.Context, cardID int64, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, pruneOldSnapshotsSQL, cardID, cardID, keepLast)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
