/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cardsmith/internal/config"
	"cardsmith/internal/crash"
	applog "cardsmith/internal/log"
	"cardsmith/internal/session"
	"cardsmith/internal/storage"
	"cardsmith/internal/version"
)

var (
	cfg      config.AppConfig
	logLevel string
	current  = &activeSession{}
)

// activeSession lets the crash handler reach a session that is created after
// the handler was deferred.
type activeSession struct{ s *session.Session }

func (a *activeSession) ReportDir() string {
	if a.s == nil {
		return ""
	}
	return a.s.ReportDir()
}

func (a *activeSession) Snapshot() ([]byte, error) {
	if a.s == nil {
		return []byte("[]"), nil
	}
	return a.s.Snapshot()
}

var rootCmd = &cobra.Command{
	Use:   "cardsmith",
	Short: "Edit the rich text of trading cards",
	Long: `Cardsmith edits trading card documents: names, costs, rules and flavor text
with inline mana symbols. Cards are stored as JSON files; images live in a
shared SQLite asset store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		opts := cfg.Logging.Options()
		if logLevel != "" {
			opts.Level = logLevel
		}
		applog.Init(opts)
		applog.WithComponent("cli").Debug("start", slog.String("cmd", cmd.Name()), slog.Int("args", len(args)))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Cardsmith",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cardsmith %s\n", version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newNewCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newTypeCommand())
	rootCmd.AddCommand(newFitCommand())
	rootCmd.AddCommand(newImageCommand())
	rootCmd.AddCommand(newSnapshotCommand())
}

// openSession starts a session working on the directory of file. The blob
// store is opened only when withBlobs is set; done releases it.
func openSession(ctx context.Context, file string, withBlobs bool) (s *session.Session, done func(), err error) {
	c := cfg
	c.Assets.CardDir = filepath.Dir(file)
	var deps session.Deps
	done = func() {}
	if withBlobs {
		st, err := storage.Open(ctx, c.Assets.DBPath)
		if err != nil {
			return nil, nil, err
		}
		deps.Blobs = st
		done = func() {
			if err := st.Close(); err != nil {
				applog.WithComponent("cli").Warn("close asset store", slog.Any("err", err))
			}
		}
	}
	s, err = session.New(c, deps)
	if err != nil {
		done()
		return nil, nil, err
	}
	current.s = s
	return s, done, nil
}

func main() {
	defer crash.Recover(current)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
