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
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"cardsmith/internal/domain"
	applog "cardsmith/internal/log"
	"cardsmith/internal/tree"
)

const (
	CardExt        = ".card.json"
	BackupsDirName = "backups"
)

// CardPath returns where card id lives inside dir.
func CardPath(dir string, id int64) string {
	return filepath.Join(dir, strconv.FormatInt(id, 10)+CardExt)
}

// SaveCard writes card into dir with transactional semantics and a timestamped
// backup of the previous version, if any. It returns the file path.
func SaveCard(dir string, card *tree.Card) (string, error) {
	if card == nil {
		return "", errors.New("nil card")
	}
	if dir == "" {
		return "", errors.New("card dir is empty")
	}
	data, err := domain.MarshalCard(card)
	if err != nil {
		return "", err
	}
	data = append(data, '\n')

	path := CardPath(dir, card.ID)
	bdir := filepath.Join(dir, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000000000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
		if cerr := copyFile(path, bpath); cerr != nil {
			return "", fmt.Errorf("backup current card: %w", cerr)
		}
	}
	if err := WriteFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("write card: %w", err)
	}
	applog.WithOperation(applog.WithComponent("storage"), "card_save").Debug("card saved",
		slog.Int64("card", card.ID), slog.String("path", path))
	return path, nil
}

// LoadCard reads and validates a card file. If the file is unreadable or
// invalid, the latest backup is tried before giving up.
func LoadCard(path string, ids *domain.IDAllocator) (*tree.Card, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "card_load").With(slog.String("path", path))
	data, err := os.ReadFile(path)
	if err == nil {
		card, perr := domain.UnmarshalCard(data, ids)
		if perr == nil {
			return card, nil
		}
		err = perr
	}
	l.Warn("card unreadable, trying backup", slog.Any("err", err))
	card, berr := loadLatestBackup(path, ids)
	if berr != nil {
		return nil, fmt.Errorf("load card: %w; backup attempt: %v", err, berr)
	}
	l.Info("card restored from backup", slog.Int64("card", card.ID))
	return card, nil
}

// ListCards returns the card files in dir, ordered by name.
func ListCards(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read card dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), CardExt) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func loadLatestBackup(path string, ids *domain.IDAllocator) (*tree.Card, error) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	b, err := os.ReadFile(candidates[len(candidates)-1])
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	return domain.UnmarshalCard(b, ids)
}

// WriteFileAtomic writes data to a temp file next to path and renames it over
// path, so readers never see a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp: %w", err)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace: %w", err)
	}
	return nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return writeFileSync(dst, b)
}
