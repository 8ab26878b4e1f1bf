/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package editor holds the operation-driven editor. One editor acts as the hub
// that owns the canonical document; other editors can be bound to a subtree of
// the hub as views and are kept in sync in both directions.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	applog "cardsmith/internal/log"
	"cardsmith/internal/ops"
	"cardsmith/internal/tree"
	"cardsmith/internal/undo"
)

var (
	// ErrUnsupportedCrossViewMove is returned for a move whose source and
	// destination sit on different sides of a view boundary.
	ErrUnsupportedCrossViewMove = errors.New("move across a view boundary is not supported")
	// ErrDetached is returned when a view edits after its bound node is gone.
	ErrDetached = errors.New("view is detached from its hub")
)

// Observer is called after every operation an editor applied, with the focus
// as it was right before.
type Observer func(before undo.Focus, op ops.Operation)

// Editor owns a tree and a selection. All mutation goes through Apply.
type Editor struct {
	name      string
	root      tree.Element
	selection *tree.Range
	refs      *ops.RefTable
	observers []Observer
	log       *slog.Logger

	// hub side
	views   map[*Editor]ops.Ref
	focused *Editor

	// view side
	hub       *Editor
	sending   bool
	receiving bool
}

// New returns an editor over root. A nil root gets the unbound placeholder.
func New(name string, root tree.Element) *Editor {
	if root == nil {
		root = tree.Placeholder()
	}
	return &Editor{
		name:  name,
		root:  root,
		refs:  ops.NewRefTable(),
		views: make(map[*Editor]ops.Ref),
		log:   applog.WithComponent("editor").With(slog.String("editor", name)),
	}
}

func (e *Editor) Name() string { return e.name }

// Root returns the live tree. Callers must not mutate it.
func (e *Editor) Root() tree.Element { return e.root }

// Selection returns a copy of the current selection, nil when nothing is selected.
func (e *Editor) Selection() *tree.Range { return e.selection.Clone() }

// Refs is the path-reference table kept current by Apply.
func (e *Editor) Refs() *ops.RefTable { return e.refs }

// Hub returns the editor this view is bound to, or nil.
func (e *Editor) Hub() *Editor { return e.hub }

// Node resolves p against the editor's tree.
func (e *Editor) Node(p tree.Path) (tree.Node, error) { return tree.Get(e.root, p) }

// Observe registers fn for every applied operation.
func (e *Editor) Observe(fn Observer) { e.observers = append(e.observers, fn) }

// Apply applies op to the tree, moves the selection and path references across
// it, then synchronizes bound views or the hub. A failing operation leaves the
// tree untouched.
func (e *Editor) Apply(op ops.Operation) error {
	sendUp := e.hub != nil && !e.receiving
	if sel, ok := op.(ops.SetSelection); ok {
		// a view re-selecting its own range may still have to move the hub
		if !sendUp && tree.RangeEqual(e.selection, sel.NewSelection) {
			return nil
		}
		op = ops.SetSelection{Selection: e.selection.Clone(), NewSelection: sel.NewSelection.Clone()}
	}

	var up tree.Path
	if sendUp {
		base, ok := e.hub.BoundPath(e)
		if !ok {
			return fmt.Errorf("%w: %q: %s", ErrDetached, e.name, op)
		}
		if err := e.hub.checkCrossViewMove(ops.Absolutize(op, base)); err != nil {
			return err
		}
		up = base
	}
	if err := e.checkCrossViewMove(op); err != nil {
		return err
	}

	before := e.CurrentFocus()
	bound := e.boundPaths()
	next, err := e.applyLocal(op)
	if err != nil {
		return err
	}
	e.selection = next
	e.refs.Transform(op)

	if sendUp {
		e.hub.focused = e
		err := guard(&e.sending, func() error { return e.hub.Apply(ops.Absolutize(op, up)) })
		if err != nil {
			return fmt.Errorf("view %q: %w", e.name, err)
		}
	}
	if err := e.forward(op, bound); err != nil {
		return err
	}
	if e.hub == nil {
		e.syncSelections()
	}
	for _, fn := range e.observers {
		fn(before, op)
	}
	return nil
}

func (e *Editor) applyLocal(op ops.Operation) (*tree.Range, error) {
	switch o := op.(type) {
	case ops.SetSelection:
		if err := e.checkRange(o.NewSelection); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ops.ErrInvalidOperation, op, err)
		}
		return o.NewSelection.Clone(), nil
	case ops.RemoveNode:
		next := e.relocate(o)
		if err := ops.Apply(e.root, op); err != nil {
			return nil, err
		}
		return next, nil
	}
	if err := ops.Apply(e.root, op); err != nil {
		return nil, err
	}
	return ops.TransformRange(e.selection, op), nil
}

// relocate computes the selection after o. A point inside the removed subtree
// moves to the end of the previous text, or the start of the next one.
func (e *Editor) relocate(o ops.RemoveNode) *tree.Range {
	if e.selection == nil {
		return nil
	}
	a, ok := e.relocatePoint(e.selection.Anchor, o)
	if !ok {
		return nil
	}
	f, ok := e.relocatePoint(e.selection.Focus, o)
	if !ok {
		return nil
	}
	return &tree.Range{Anchor: a, Focus: f}
}

func (e *Editor) relocatePoint(pt tree.Point, o ops.RemoveNode) (tree.Point, bool) {
	if p, ok := ops.TransformPoint(pt, o); ok {
		return p, true
	}
	var prev, next *tree.Point
	tree.Texts(e.root, func(t *tree.Text, p tree.Path) bool {
		switch {
		case o.Path.Equal(p) || o.Path.IsAncestor(p):
			return true
		case p.Compare(o.Path) < 0:
			prev = &tree.Point{Path: p.Clone(), Offset: len(t.Content)}
			return true
		}
		next = &tree.Point{Path: p.Clone()}
		return false
	})
	switch {
	case prev != nil:
		return ops.TransformPoint(*prev, o)
	case next != nil:
		return ops.TransformPoint(*next, o)
	}
	return tree.Point{}, false
}

func (e *Editor) checkRange(r *tree.Range) error {
	if r == nil {
		return nil
	}
	for _, pt := range []tree.Point{r.Anchor, r.Focus} {
		t, err := tree.Leaf(e.root, pt.Path)
		if err != nil {
			return err
		}
		if pt.Offset < 0 || pt.Offset > len(t.Content) {
			return fmt.Errorf("offset %d outside 0..%d", pt.Offset, len(t.Content))
		}
		if pt.Offset < len(t.Content) && !utf8.RuneStart(t.Content[pt.Offset]) {
			return fmt.Errorf("offset %d splits a character", pt.Offset)
		}
	}
	return nil
}

// CurrentFocus captures the focused view and the selection.
func (e *Editor) CurrentFocus() undo.Focus {
	f := undo.Focus{Selection: e.selection.Clone()}
	if e.focused != nil {
		f.Target = e.focused.name
	}
	return f
}

// SetFocus records which bound view has the keyboard; nil means the hub itself.
func (e *Editor) SetFocus(view *Editor) {
	if view != nil {
		if _, ok := e.views[view]; !ok {
			view = nil
		}
	}
	e.focused = view
}

// Focused returns the focused view or nil.
func (e *Editor) Focused() *Editor { return e.focused }

// RestoreFocus puts focus and selection back to f. A target that is no longer
// bound falls back to the hub.
func (e *Editor) RestoreFocus(f undo.Focus) error {
	e.focused = nil
	if f.Target != "" {
		for v := range e.views {
			if v.name == f.Target {
				e.focused = v
				break
			}
		}
	}
	return e.Select(f.Selection)
}
