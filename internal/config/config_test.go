/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, path)
	for _, k := range []string{EnvHistoryLimit, EnvAutoReplace, EnvMergeTyping, EnvAssetsDB, EnvCardDir, EnvLogLevel, EnvLogFormat, EnvLogSource, EnvLogFile} {
		t.Setenv(k, "")
	}
	return path
}

func TestLoadWithoutFileYieldsDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	d := Defaults()
	if cfg.Editor != d.Editor || cfg.Logging != d.Logging || cfg.Layout != d.Layout {
		t.Fatalf("expected defaults, got %#v", cfg)
	}
	if cfg.Editor.HistoryLimit != 100 || !cfg.Editor.AutoReplace || !cfg.Editor.MergeTyping {
		t.Fatalf("editor defaults wrong: %#v", cfg.Editor)
	}
}

func TestFileKeepsUnsetDefaults(t *testing.T) {
	path := isolate(t)
	data := []byte("editor:\n  history_limit: 20\nlogging:\n  level: DEBUG\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Editor.HistoryLimit != 20 {
		t.Fatalf("history_limit = %d", cfg.Editor.HistoryLimit)
	}
	if !cfg.Editor.AutoReplace || !cfg.Editor.MergeTyping {
		t.Fatalf("unset booleans lost their defaults: %#v", cfg.Editor)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Fatalf("logging not normalized: %#v", cfg.Logging)
	}
}

func TestFileCanDisableAutoReplace(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("editor:\n  auto_replace: false\n  history_limit: -3\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Editor.AutoReplace {
		t.Fatalf("auto_replace should be off")
	}
	if cfg.Editor.HistoryLimit != 100 {
		t.Fatalf("invalid history_limit not reset: %d", cfg.Editor.HistoryLimit)
	}
}

func TestMalformedFileIsAnError(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("editor: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveThenLoad(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Editor.SymbolDir = "https://cdn.test/symbols"
	cfg.Layout.MaxFontSize = 18
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Editor.SymbolDir != "https://cdn.test/symbols" || got.Layout.MaxFontSize != 18 {
		t.Fatalf("round trip lost values: %#v", got)
	}
}

func TestEnvOverridesEditor(t *testing.T) {
	isolate(t)
	t.Setenv(EnvHistoryLimit, "7")
	t.Setenv(EnvAutoReplace, "off")
	t.Setenv(EnvMergeTyping, "no")
	t.Setenv(EnvAssetsDB, "/tmp/blobs.sqlite")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Editor.HistoryLimit != 7 || cfg.Editor.AutoReplace || cfg.Editor.MergeTyping {
		t.Fatalf("editor overrides not applied: %#v", cfg.Editor)
	}
	if cfg.Assets.DBPath != "/tmp/blobs.sqlite" {
		t.Fatalf("assets override not applied: %q", cfg.Assets.DBPath)
	}
	t.Setenv(EnvHistoryLimit, "zero")
	cfg, _ = Load()
	if cfg.Editor.HistoryLimit != 100 {
		t.Fatalf("bad history override applied: %d", cfg.Editor.HistoryLimit)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "X:/cardsmith.log")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/cardsmith.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
	opts := cfg.Logging.Options()
	if opts.Level != "error" || !opts.AddSource || opts.File != "X:/cardsmith.log" {
		t.Fatalf("Options() mismatch: %#v", opts)
	}
}

func TestEnvOverrideFor(t *testing.T) {
	isolate(t)
	if _, ok := EnvOverrideFor("editor.history_limit"); ok {
		t.Fatalf("no override expected")
	}
	t.Setenv(EnvHistoryLimit, "5")
	if name, ok := EnvOverrideFor("editor.history_limit"); !ok || name != EnvHistoryLimit {
		t.Fatalf("EnvOverrideFor = %q %v", name, ok)
	}
	if _, ok := EnvOverrideFor("editor.unknown"); ok {
		t.Fatalf("unknown key reported as overridden")
	}
}
