/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package session assembles one editing session: the hub editor over the card
// document, its history, auto-replace, caret nudging, the blob store for
// images, and card identity.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cardsmith/internal/autoreplace"
	"cardsmith/internal/config"
	"cardsmith/internal/cursor"
	"cardsmith/internal/domain"
	"cardsmith/internal/editor"
	applog "cardsmith/internal/log"
	"cardsmith/internal/storage"
	"cardsmith/internal/textlayout"
	"cardsmith/internal/tree"
	"cardsmith/internal/undo"
)

var (
	ErrNoCard      = errors.New("no such card")
	ErrNoField     = errors.New("no such field")
	ErrNoView      = errors.New("no such view")
	ErrNoSelection = errors.New("nothing selected")
	ErrNoBlobStore = errors.New("no blob store configured")
)

// fontFamily is the family the configured font file is registered under.
const fontFamily = "card"

// Deps are the collaborators a session uses but does not own.
type Deps struct {
	Blobs *storage.Store       // optional; images need it
	IDs   *domain.IDAllocator  // optional; a fresh allocator otherwise
	Icon  autoreplace.IconFunc // optional; derived from editor.symbol_dir otherwise
}

type Session struct {
	cfg     config.AppConfig
	hub     *editor.Editor
	history *undo.Manager
	replace *autoreplace.Engine // nil when auto-replace is off
	layout  textlayout.Layouter
	blobs   *storage.Store
	ids     *domain.IDAllocator
	views   map[string]*editor.Editor
	log     *slog.Logger
}

// New starts an empty session.
func New(cfg config.AppConfig, deps Deps) (*Session, error) {
	s := &Session{
		cfg:   cfg,
		hub:   editor.New("hub", &tree.Document{}),
		blobs: deps.Blobs,
		ids:   deps.IDs,
		views: make(map[string]*editor.Editor),
		log:   applog.WithComponent("session"),
	}
	if s.ids == nil {
		s.ids = domain.NewIDAllocator()
	}
	s.history = undo.NewManager(undo.Config{
		MaxSteps:       cfg.Editor.HistoryLimit,
		Apply:          s.hub.Apply,
		Restore:        s.restore,
		Release:        s.release,
		DisableMerging: !cfg.Editor.MergeTyping,
	})
	s.hub.Observe(s.history.Record)

	if cfg.Editor.AutoReplace {
		icon := deps.Icon
		if icon == nil {
			icon = symbolIcons(cfg.Editor.SymbolDir)
		}
		s.replace = autoreplace.New(autoreplace.Rules(icon)...)
	}

	var provider textlayout.Provider = textlayout.BasicProvider{}
	if cfg.Layout.FontFile != "" {
		fonts := textlayout.NewCardFonts(fontFamily)
		files := []struct {
			style textlayout.Style
			path  string
		}{
			{textlayout.Regular, cfg.Layout.FontFile},
			{textlayout.Bold, cfg.Layout.BoldFontFile},
			{textlayout.Italic, cfg.Layout.ItalicFontFile},
		}
		for _, f := range files {
			if f.path == "" {
				continue
			}
			if err := fonts.LoadFile(f.style, f.path); err != nil {
				return nil, fmt.Errorf("session: %w", err)
			}
		}
		provider = fonts
	}
	s.layout = textlayout.NewWordWrap(provider)
	return s, nil
}

func symbolIcons(dir string) autoreplace.IconFunc {
	if dir == "" {
		return autoreplace.DefaultIcon
	}
	dir = strings.TrimRight(dir, "/")
	return func(symbol string) string { return dir + "/" + strings.ToLower(symbol) + ".svg" }
}

func (s *Session) Hub() *editor.Editor      { return s.hub }
func (s *Session) History() *undo.Manager   { return s.history }
func (s *Session) IDs() *domain.IDAllocator { return s.ids }

// Editor returns the editor keyboard input goes to: the focused view, or the
// hub when no view has focus.
func (s *Session) Editor() *editor.Editor {
	if v := s.hub.Focused(); v != nil {
		return v
	}
	return s.hub
}

func (s *Session) restore(f undo.Focus) {
	if err := s.hub.RestoreFocus(f); err != nil {
		// the edit is restored; only the old caret no longer resolves
		s.log.Warn("restore selection failed", slog.String("target", f.Target), slog.Any("err", err))
	}
}

func (s *Session) release(src string) {
	id, ok := storage.ParseURL(src)
	if !ok || s.blobs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.blobs.Release(ctx, id); err != nil {
		s.log.Error("release image failed", slog.String("src", src), slog.Any("err", err))
	}
}

// Cards returns the cards of the document in order.
func (s *Session) Cards() []*tree.Card {
	var out []*tree.Card
	for _, n := range s.hub.Root().Nodes() {
		if c, ok := n.(*tree.Card); ok {
			out = append(out, c)
		}
	}
	return out
}

// Card finds card id and its path in the document.
func (s *Session) Card(id int64) (*tree.Card, tree.Path, bool) {
	for i, n := range s.hub.Root().Nodes() {
		if c, ok := n.(*tree.Card); ok && c.ID == id {
			return c, tree.P(i), true
		}
	}
	return nil, nil, false
}

func (s *Session) fieldPath(cardID int64, field string) (tree.Path, error) {
	card, cp, ok := s.Card(cardID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoCard, cardID)
	}
	_, fp, ok := domain.FindField(card, field)
	if !ok {
		return nil, fmt.Errorf("%w: card %d has no %q", ErrNoField, cardID, field)
	}
	return cp.Concat(fp), nil
}

// AddCard appends a new card with default fields as one undoable step and
// returns the card as it lives in the document.
func (s *Session) AddCard() (*tree.Card, error) {
	card := domain.NewCard(s.ids)
	err := s.history.Group(func() error {
		return s.hub.InsertNodes(tree.P(len(s.hub.Root().Nodes())), card)
	})
	if err != nil {
		return nil, fmt.Errorf("add card: %w", err)
	}
	s.log.Debug("card added", slog.Int64("card", card.ID))
	live, _, _ := s.Card(card.ID)
	return live, nil
}

// LoadCard appends a card read from storage. Loading is not an edit and does
// not enter the history.
func (s *Session) LoadCard(card *tree.Card) error {
	if _, _, dup := s.Card(card.ID); dup {
		return fmt.Errorf("load card: id %d already open", card.ID)
	}
	s.ids.Observe(card.ID)
	return s.history.WithoutWriting(func() error {
		return s.hub.InsertNodes(tree.P(len(s.hub.Root().Nodes())), card)
	})
}

// RemoveCard deletes card id as one undoable step. Views bound inside it are
// detached.
func (s *Session) RemoveCard(id int64) error {
	_, p, ok := s.Card(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoCard, id)
	}
	return s.history.Group(func() error { return s.hub.RemoveNodes(p, 1) })
}

// BindView binds the view called name to a field of a card, creating the view
// on first use. A bound view is rebound.
func (s *Session) BindView(name string, cardID int64, field string) (*editor.Editor, error) {
	p, err := s.fieldPath(cardID, field)
	if err != nil {
		return nil, err
	}
	v, ok := s.views[name]
	if !ok {
		v = editor.New(name, tree.Placeholder())
	}
	if err := editor.SetView(v, s.hub, p); err != nil {
		return nil, err
	}
	s.views[name] = v
	return v, nil
}

// UnbindView drops the view called name.
func (s *Session) UnbindView(name string) error {
	v, ok := s.views[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoView, name)
	}
	editor.UnsetView(v)
	delete(s.views, name)
	return nil
}

// View returns the view called name.
func (s *Session) View(name string) (*editor.Editor, bool) {
	v, ok := s.views[name]
	return v, ok
}

// Focus gives the keyboard to the view called name; "" focuses the hub.
func (s *Session) Focus(name string) error {
	if name == "" {
		s.hub.SetFocus(nil)
		return nil
	}
	v, ok := s.views[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoView, name)
	}
	if _, bound := s.hub.BoundPath(v); !bound {
		return fmt.Errorf("%w: %q is detached", ErrNoView, name)
	}
	s.hub.SetFocus(v)
	return nil
}

// Select sets the selection of the active editor, nudged off illegal caret
// positions. A selection change ends the current typing run.
func (s *Session) Select(r *tree.Range) error {
	ed := s.Editor()
	next, _ := cursor.NudgeRange(ed.Root(), r, cursor.Auto)
	s.history.SplitNext()
	return ed.Select(next)
}

// SelectEnd puts the caret at the last legal position of the active editor.
func (s *Session) SelectEnd() error {
	ed := s.Editor()
	pt, ok := tree.End(ed.Root(), tree.Path{})
	if !ok {
		return ErrNoSelection
	}
	pt, _ = cursor.Nudge(ed.Root(), pt, cursor.Backward)
	return s.Select(tree.Caret(pt))
}

// MoveCaret moves the focus one caret stop in dir; extend keeps the anchor.
// At a document edge nothing happens.
func (s *Session) MoveCaret(dir cursor.Direction, extend bool) error {
	ed := s.Editor()
	sel := ed.Selection()
	if sel == nil {
		return ErrNoSelection
	}
	next, ok := cursor.Move(ed.Root(), sel.Focus, dir)
	if !ok {
		return nil
	}
	anchor := next
	if extend {
		anchor = sel.Anchor
	}
	s.history.SplitNext()
	return ed.Select(&tree.Range{Anchor: anchor, Focus: next})
}

func (s *Session) Undo() (bool, error) { return s.history.Undo() }
func (s *Session) Redo() (bool, error) { return s.history.Redo() }

// InsertImage stores data in the blob store and points the image of a card
// field at it, as one undoable step.
func (s *Session) InsertImage(ctx context.Context, cardID int64, field, mime string, data []byte) (string, error) {
	if s.blobs == nil {
		return "", ErrNoBlobStore
	}
	fp, err := s.fieldPath(cardID, field)
	if err != nil {
		return "", err
	}
	f, _ := tree.Get(s.hub.Root(), fp)
	_, ip, ok := tree.FirstMatching(f, tree.Pattern{"type": tree.KindImage})
	if !ok {
		return "", fmt.Errorf("%w: field %q has no image", ErrNoField, field)
	}
	id, err := s.blobs.Put(ctx, mime, data)
	if err != nil {
		return "", err
	}
	src := storage.URL(id)
	err = s.history.Group(func() error {
		return s.hub.SetNodeProperties(fp.Concat(ip), tree.Props{"src": src})
	})
	if err != nil {
		if _, rerr := s.blobs.Release(ctx, id); rerr != nil {
			s.log.Warn("release unused image failed", slog.String("id", id), slog.Any("err", rerr))
		}
		return "", fmt.Errorf("insert image: %w", err)
	}
	s.log.InfoContext(applog.WithCard(ctx, cardID), "image inserted", slog.String("field", field), slog.String("src", src))
	return src, nil
}

// FitSize returns the largest font size at which a field's text fits a box of
// width x height pixels, within the configured size bounds.
func (s *Session) FitSize(cardID int64, field string, width, height float64) (float64, error) {
	fp, err := s.fieldPath(cardID, field)
	if err != nil {
		return 0, err
	}
	f, _ := tree.Get(s.hub.Root(), fp)
	family := ""
	if s.cfg.Layout.FontFile != "" {
		family = fontFamily
	}
	measure := textlayout.FieldMeasurer(s.layout, family, f, float32(width))
	return textlayout.ShrinkToFit(measure, textlayout.Constraints{
		MaxWidth:  width,
		MaxHeight: height,
		MinSize:   s.cfg.Layout.MinFontSize,
		MaxSize:   s.cfg.Layout.MaxFontSize,
	}), nil
}

// Snapshot encodes every open card as a JSON array of card documents.
func (s *Session) Snapshot() ([]byte, error) {
	docs := []json.RawMessage{}
	for _, c := range s.Cards() {
		b, err := domain.MarshalCard(c)
		if err != nil {
			return nil, err
		}
		docs = append(docs, b)
	}
	return json.MarshalIndent(docs, "", "  ")
}

// ReportDir is where crash reports for this session go.
func (s *Session) ReportDir() string { return s.cfg.Assets.CardDir }

// Save writes every card to the card directory and returns the file paths.
func (s *Session) Save() ([]string, error) {
	var paths []string
	for _, c := range s.Cards() {
		p, err := storage.SaveCard(s.cfg.Assets.CardDir, c)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Open loads a card file into the session.
func (s *Session) Open(path string) (*tree.Card, error) {
	card, err := storage.LoadCard(path, s.ids)
	if err != nil {
		return nil, err
	}
	if err := s.LoadCard(card); err != nil {
		return nil, err
	}
	live, _, _ := s.Card(card.ID)
	return live, nil
}
