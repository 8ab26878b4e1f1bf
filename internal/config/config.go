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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	applog "cardsmith/internal/log"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the
// user scope. Environment variables are read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Editor        EditorConfig  `yaml:"editor"`
	Assets        AssetsConfig  `yaml:"assets"`
	Layout        LayoutConfig  `yaml:"layout"`
	Logging       LoggingConfig `yaml:"logging"`
}

type EditorConfig struct {
	HistoryLimit int    `yaml:"history_limit"`
	AutoReplace  bool   `yaml:"auto_replace"`
	MergeTyping  bool   `yaml:"merge_typing"`
	SymbolDir    string `yaml:"symbol_dir"` // where mana symbol icons are served from
}

type AssetsConfig struct {
	DBPath  string `yaml:"db_path"`
	CardDir string `yaml:"card_dir"`
}

// LayoutConfig bounds the font auto-fit of card text fields.
type LayoutConfig struct {
	MinFontSize    float64 `yaml:"min_font_size"`
	MaxFontSize    float64 `yaml:"max_font_size"`
	FontFile       string  `yaml:"font_file"`        // regular face; enables real glyph metrics
	BoldFontFile   string  `yaml:"bold_font_file"`   // optional
	ItalicFontFile string  `yaml:"italic_font_file"` // optional
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Options converts the logging section for log.Init.
func (l LoggingConfig) Options() applog.Options {
	return applog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Editor:        EditorConfig{HistoryLimit: 100, AutoReplace: true, MergeTyping: true, SymbolDir: "symbols"},
		Assets:        AssetsConfig{DBPath: filepath.Join(dataDir(), "assets.sqlite"), CardDir: "."},
		Layout:        LayoutConfig{MinFontSize: 6, MaxFontSize: 14},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath   = "CARDSMITH_CONFIG"
	EnvHistoryLimit = "CARDSMITH_HISTORY_LIMIT"
	EnvAutoReplace  = "CARDSMITH_AUTO_REPLACE"
	EnvMergeTyping  = "CARDSMITH_MERGE_TYPING"
	EnvAssetsDB     = "CARDSMITH_ASSETS_DB"
	EnvCardDir      = "CARDSMITH_CARD_DIR"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "CARDSMITH_LOG_LEVEL"
	EnvLogFormat = "CARDSMITH_LOG_FORMAT"
	EnvLogSource = "CARDSMITH_LOG_SOURCE"
	EnvLogFile   = "CARDSMITH_LOG_FILE"
)

func appDir() string {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return filepath.Join(base, "Cardsmith")
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Cardsmith")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			return filepath.Join(x, "cardsmith")
		}
		return filepath.Join(os.Getenv("HOME"), ".config", "cardsmith")
	}
}

func dataDir() string {
	if runtime.GOOS == "linux" {
		if x := os.Getenv("XDG_DATA_HOME"); x != "" {
			return filepath.Join(x, "cardsmith")
		}
		if h := os.Getenv("HOME"); h != "" {
			return filepath.Join(h, ".local", "share", "cardsmith")
		}
	}
	return appDir()
}

// ConfigPath returns the per-user config file path, or CARDSMITH_CONFIG if set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	base := appDir()
	if !filepath.IsAbs(base) {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges
// environment overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file. A missing file yields the defaults;
// a malformed one is an error.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Decoding onto the defaults keeps every key the file leaves out.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	normalize(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

func SaveTo(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func normalize(cfg *AppConfig) {
	d := Defaults()
	if cfg.ConfigVersion == 0 {
		cfg.ConfigVersion = d.ConfigVersion
	}
	if cfg.Editor.HistoryLimit <= 0 {
		cfg.Editor.HistoryLimit = d.Editor.HistoryLimit
	}
	cfg.Editor.SymbolDir = strings.TrimSpace(cfg.Editor.SymbolDir)
	if cfg.Layout.MinFontSize <= 0 {
		cfg.Layout.MinFontSize = d.Layout.MinFontSize
	}
	if cfg.Layout.MaxFontSize < cfg.Layout.MinFontSize {
		cfg.Layout.MaxFontSize = cfg.Layout.MinFontSize
	}
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
	cfg.Logging.File = strings.TrimSpace(cfg.Logging.File)
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvHistoryLimit)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Editor.HistoryLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvAutoReplace)); v != "" {
		cfg.Editor.AutoReplace = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvMergeTyping)); v != "" {
		cfg.Editor.MergeTyping = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvAssetsDB)); v != "" {
		cfg.Assets.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCardDir)); v != "" {
		cfg.Assets.CardDir = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envByKey = map[string]string{
	"editor.history_limit": EnvHistoryLimit,
	"editor.auto_replace":  EnvAutoReplace,
	"editor.merge_typing":  EnvMergeTyping,
	"assets.db_path":       EnvAssetsDB,
	"assets.card_dir":      EnvCardDir,
	"logging.level":        EnvLogLevel,
	"logging.format":       EnvLogFormat,
	"logging.source":       EnvLogSource,
	"logging.file":         EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envByKey[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}
