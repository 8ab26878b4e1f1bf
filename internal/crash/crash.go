/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report plus a snapshot of the open
// cards, so no edit is lost when the process dies.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "cardsmith/internal/log"
	"cardsmith/internal/storage"
	"cardsmith/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Source is what a crashing process can still tell about its open document.
type Source interface {
	// ReportDir is where the report and snapshot go; empty means the temp dir.
	ReportDir() string
	// Snapshot encodes the open cards.
	Snapshot() ([]byte, error)
}

// Recover captures a panic, logs it with a stacktrace, writes an error report
// and a snapshot of src (if provided), then exits with code 2.
//
// Usage: defer crash.Recover(src)
func Recover(src Source) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(src, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if src != nil {
		if path, err := writeSnapshot(src); err != nil {
			l.Error("crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("crash snapshot written", slog.String("path", path))
		}
	}

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	exitFn(2)
}

func reportDir(src Source) string {
	if src == nil || src.ReportDir() == "" {
		return os.TempDir()
	}
	dir := filepath.Join(src.ReportDir(), storage.BackupsDirName)
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

func stamp() string { return time.Now().Format("20060102-150405") }

func writeReport(src Source, panicVal any, stack []byte) (string, error) {
	path := filepath.Join(reportDir(src), fmt.Sprintf("crash-%s.log", stamp()))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Cardsmith Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if src != nil && src.ReportDir() != "" {
		_, _ = fmt.Fprintf(&buf, "CardDir: %s\n", src.ReportDir())
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	return path, storage.WriteFileAtomic(path, buf.Bytes())
}

func writeSnapshot(src Source) (string, error) {
	doc, err := src.Snapshot()
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	path := filepath.Join(reportDir(src), fmt.Sprintf("crash-%s.cards.json", stamp()))
	return path, storage.WriteFileAtomic(path, doc)
}
