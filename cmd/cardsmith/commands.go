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
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cardsmith/internal/config"
	"cardsmith/internal/domain"
	"cardsmith/internal/session"
	"cardsmith/internal/storage"
	"cardsmith/internal/tree"
)

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the config file and environment
overrides have been applied, followed by the path of the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, out)
			return nil
		},
	}
}

func newNewCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create an empty card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = cfg.Assets.CardDir
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			ids := domain.NewIDAllocator()
			paths, err := storage.ListCards(dir)
			if err != nil {
				return err
			}
			// continue numbering after the cards already in dir
			for _, p := range paths {
				if _, err := storage.LoadCard(p, ids); err != nil {
					return err
				}
			}
			c := cfg
			c.Assets.CardDir = dir
			s, err := session.New(c, session.Deps{IDs: ids})
			if err != nil {
				return err
			}
			current.s = s
			card, err := s.AddCard()
			if err != nil {
				return err
			}
			if _, err := s.Save(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), storage.CardPath(dir, card.ID))
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory for the card file (default: assets.card_dir)")
	return cmd
}

func newShowCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <card-file>",
		Short: "Display a card",
		Long: `Display a card as an outline of its document tree, or as the stored JSON
document with --json.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := openSession(cmd.Context(), args[0], false)
			if err != nil {
				return err
			}
			defer done()
			card, err := s.Open(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				b, err := domain.MarshalCard(card)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Card %d\n", card.ID)
			for _, name := range domain.FieldNames {
				if f, _, ok := domain.FindField(card, name); ok {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-10s %s\n", name, tree.PlainText(f))
				}
			}
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprint(cmd.OutOrStdout(), tree.Outline(card))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the card document as JSON")
	return cmd
}

func newTypeCommand() *cobra.Command {
	var field, text string
	var bold bool
	cmd := &cobra.Command{
		Use:   "type <card-file>",
		Short: "Type text at the end of a card field",
		Long: `Type text at the end of a card field the way a keyboard would, so that
auto-replace turns "--" into an em dash and {W}, {5} or {T} into mana symbols.`,
		Example: `  cardsmith type 1.card.json --field cost --text "{2}{W}{W}"
  cardsmith type 1.card.json --field card_text --text "Flying -- vigilance"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := openSession(cmd.Context(), args[0], false)
			if err != nil {
				return err
			}
			defer done()
			card, err := s.Open(args[0])
			if err != nil {
				return err
			}
			if err := editField(s, card.ID, field); err != nil {
				return err
			}
			start := s.Editor().Selection()
			if err := s.Type(text); err != nil {
				return err
			}
			if bold {
				end := s.Editor().Selection()
				if err := s.Select(&tree.Range{Anchor: start.Anchor, Focus: end.Focus}); err != nil {
					return err
				}
				if err := s.ToggleMark("bold"); err != nil {
					return err
				}
			}
			return save(cmd, s)
		},
	}
	cmd.Flags().StringVarP(&field, "field", "f", domain.FieldCardText, "field to type into")
	cmd.Flags().StringVarP(&text, "text", "t", "", "text to type")
	cmd.Flags().BoolVar(&bold, "bold", false, "make the typed text bold")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

// editField binds a view to field, focuses it and puts the caret at its end.
func editField(s *session.Session, cardID int64, field string) error {
	if _, err := s.BindView("edit", cardID, field); err != nil {
		return err
	}
	if err := s.Focus("edit"); err != nil {
		return err
	}
	return s.SelectEnd()
}

func save(cmd *cobra.Command, s *session.Session) error {
	paths, err := s.Save()
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), "saved", p)
	}
	return nil
}

func newFitCommand() *cobra.Command {
	var field string
	var width, height float64
	cmd := &cobra.Command{
		Use:   "fit <card-file>",
		Short: "Find the largest font size at which a field fits its box",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if width <= 0 || height <= 0 {
				return errors.New("--width and --height must be positive")
			}
			s, done, err := openSession(cmd.Context(), args[0], false)
			if err != nil {
				return err
			}
			defer done()
			card, err := s.Open(args[0])
			if err != nil {
				return err
			}
			size, err := s.FitSize(card.ID, field, width, height)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.1f\n", size)
			return nil
		},
	}
	cmd.Flags().StringVarP(&field, "field", "f", domain.FieldCardText, "field to measure")
	cmd.Flags().Float64Var(&width, "width", 0, "box width in pixels")
	cmd.Flags().Float64Var(&height, "height", 0, "box height in pixels")
	return cmd
}

func newImageCommand() *cobra.Command {
	var field string
	cmd := &cobra.Command{
		Use:   "image <card-file> <image-file>",
		Short: "Put an image into the asset store and show it on a card",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			s, done, err := openSession(cmd.Context(), args[0], true)
			if err != nil {
				return err
			}
			defer done()
			card, err := s.Open(args[0])
			if err != nil {
				return err
			}
			src, err := s.InsertImage(cmd.Context(), card.ID, field, http.DetectContentType(data), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", filepath.Base(args[1]), src)
			return save(cmd, s)
		},
	}
	cmd.Flags().StringVarP(&field, "field", "f", domain.FieldImage, "image field (image or frame)")
	return cmd
}

func newSnapshotCommand() *cobra.Command {
	var list bool
	var keep int
	cmd := &cobra.Command{
		Use:   "snapshot <card-file>",
		Short: "Record a snapshot of a card in the asset store",
		Long: `Record the current state of a card in the asset store and prune old
snapshots beyond --keep. With --list the stored snapshots are listed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			card, err := storage.LoadCard(args[0], domain.NewIDAllocator())
			if err != nil {
				return err
			}
			st, err := storage.Open(ctx, cfg.Assets.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if list {
				snaps, err := st.ListSnapshots(ctx, card.ID, 0)
				if err != nil {
					return err
				}
				for _, sn := range snaps {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %d bytes\n", sn.TS.Format(time.RFC3339), len(sn.Doc))
				}
				return nil
			}
			doc, err := domain.MarshalCard(card)
			if err != nil {
				return err
			}
			if err := st.SaveSnapshot(ctx, card.ID, doc, time.Now()); err != nil {
				return err
			}
			pruned, err := st.PruneSnapshots(ctx, card.ID, keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot of card %d recorded (%d pruned)\n", card.ID, pruned)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list stored snapshots, newest first")
	cmd.Flags().IntVar(&keep, "keep", 20, "number of snapshots to keep per card")
	return cmd
}
