/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	applog "cardsmith/internal/log"
	"cardsmith/internal/ops"
	"cardsmith/internal/tree"
)

// SetView binds view to the subtree of hub at p. Any earlier binding of view is
// dropped first. The view gets a private copy of the subtree and the part of
// the hub selection that lies inside it; the hub is not notified.
func SetView(view, hub *Editor, p tree.Path) error {
	switch {
	case view == hub:
		return fmt.Errorf("editor %q cannot view itself", view.name)
	case hub.hub != nil:
		return fmt.Errorf("editor %q is a view and cannot be a hub", hub.name)
	case len(view.views) > 0:
		return fmt.Errorf("editor %q is a hub with %d views", view.name, len(view.views))
	}
	UnsetView(view)
	el, err := tree.GetElement(hub.root, p)
	if err != nil {
		return fmt.Errorf("bind view %q: %w", view.name, err)
	}
	view.root = tree.Clone(el).(tree.Element)
	view.selection = contained(hub.selection, p)
	view.hub = hub
	hub.views[view] = hub.refs.Track(p)
	hub.log.DebugContext(view.logCtx(), "view bound", slog.String("path", p.String()))
	return nil
}

// UnsetView releases the binding of view and clears it to the placeholder.
// Unbound views are left alone.
func UnsetView(view *Editor) {
	hub := view.hub
	if hub == nil {
		return
	}
	if ref, ok := hub.views[view]; ok {
		hub.refs.Release(ref)
		delete(hub.views, view)
	}
	if hub.focused == view {
		hub.focused = nil
	}
	view.hub = nil
	view.root = tree.Placeholder()
	view.selection = nil
	hub.log.DebugContext(view.logCtx(), "view unbound")
}

// BoundPath returns the current hub path of view. ok is false when view is not
// bound here or its node was removed.
func (e *Editor) BoundPath(view *Editor) (tree.Path, bool) {
	ref, ok := e.views[view]
	if !ok {
		return nil, false
	}
	return e.refs.Path(ref)
}

// Views returns the bound views ordered by name.
func (e *Editor) Views() []*Editor {
	out := make([]*Editor, 0, len(e.views))
	for v := range e.views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (e *Editor) boundPaths() map[*Editor]tree.Path {
	if len(e.views) == 0 {
		return nil
	}
	out := make(map[*Editor]tree.Path, len(e.views))
	for v, ref := range e.views {
		if p, ok := e.refs.Path(ref); ok {
			out[v] = p
		}
	}
	return out
}

// checkCrossViewMove rejects a move that would carry a node into or out of a
// bound subtree.
func (e *Editor) checkCrossViewMove(op ops.Operation) error {
	mv, ok := op.(ops.MoveNode)
	if !ok {
		return nil
	}
	for v, base := range e.boundPaths() {
		if mv.Path.IsDescendant(base) != mv.NewPath.IsDescendant(base) {
			return fmt.Errorf("%w: %s, view %q at %s", ErrUnsupportedCrossViewMove, mv, v.name, base)
		}
	}
	return nil
}

// forward sends op to every view whose subtree it touches. bound holds the
// view paths from before op was applied.
func (e *Editor) forward(op ops.Operation, bound map[*Editor]tree.Path) error {
	for v, base := range bound {
		if v.sending {
			continue
		}
		local, ok, err := e.localize(op, base)
		if err != nil {
			return fmt.Errorf("forward to view %q: %w", v.name, err)
		}
		if !ok {
			continue
		}
		if err := guard(&v.receiving, func() error { return v.Apply(local) }); err != nil {
			e.log.ErrorContext(v.logCtx(), "view out of sync", slog.String("op", op.String()), slog.Any("err", err))
			return fmt.Errorf("forward to view %q: %w", v.name, err)
		}
	}
	return nil
}

// syncSelections gives every bound view the part of the hub selection inside
// its subtree, or none.
func (e *Editor) syncSelections() {
	for v, base := range e.boundPaths() {
		v.selection = contained(e.selection, base)
	}
}

func (e *Editor) logCtx() context.Context {
	return applog.WithView(context.Background(), e.name)
}

func (e *Editor) localize(op ops.Operation, base tree.Path) (ops.Operation, bool, error) {
	switch o := op.(type) {
	case ops.SetSelection:
		return ops.SetSelection{NewSelection: contained(e.selection, base)}, true, nil
	case ops.MoveNode:
		if !o.Path.IsDescendant(base) || !o.NewPath.IsDescendant(base) {
			return nil, false, nil
		}
	default:
		p, _ := ops.PathOf(op)
		if !p.IsDescendant(base) {
			return nil, false, nil
		}
	}
	local, err := ops.Relativize(op, base)
	if err != nil {
		return nil, false, err
	}
	return local, true, nil
}

// contained returns sel in the coordinates of the subtree at base, or nil when
// either end lies outside it.
func contained(sel *tree.Range, base tree.Path) *tree.Range {
	if sel == nil || !sel.Anchor.Path.IsDescendant(base) || !sel.Focus.Path.IsDescendant(base) {
		return nil
	}
	out, err := ops.MapRange(sel, func(p tree.Path) (tree.Path, error) { return p.RelativeTo(base) })
	if err != nil {
		return nil
	}
	return out
}
