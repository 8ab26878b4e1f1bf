/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package cursor keeps carets off positions the renderer cannot show: inside
// void or atomic nodes, and on the outer edge of a mana pip that must be
// entered.
package cursor

import (
	"unicode/utf8"

	"cardsmith/internal/tree"
)

// Edge classifies how a caret may sit around an element.
type Edge int

const (
	// Either places no constraint.
	Either Edge = iota
	// Inside requires the caret to resolve inside the element, never on its
	// outer boundary.
	Inside
	// Outside forbids the caret inside the element.
	Outside
)

func (e Edge) String() string {
	switch e {
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	}
	return "either"
}

// StopOnEdge returns the caret classification of n.
func StopOnEdge(n tree.Node) Edge {
	if tree.IsVoid(n) || tree.IsAtomic(n) {
		return Outside
	}
	if _, ok := n.(*tree.ManaPip); ok {
		return Inside
	}
	return Either
}

// Direction picks which way Nudge searches.
type Direction int

const (
	// Auto searches backward from the start of a text and forward otherwise.
	Auto Direction = iota
	Forward
	Backward
)

// Legal reports whether pt is a caret position the editor may keep.
func Legal(root tree.Node, pt tree.Point) bool {
	t, err := tree.Leaf(root, pt.Path)
	if err != nil || pt.Offset < 0 || pt.Offset > len(t.Content) {
		return false
	}
	if pt.Offset < len(t.Content) && !utf8.RuneStart(t.Content[pt.Offset]) {
		return false
	}
	ancestors, err := tree.Ancestors(root, pt.Path)
	if err != nil {
		return false
	}
	for _, a := range ancestors {
		if StopOnEdge(a) == Outside {
			return false
		}
	}
	if len(pt.Path) == 0 {
		return true
	}
	parent := ancestors[len(ancestors)-1].(tree.Element)
	kids := parent.Nodes()
	idx := pt.Path[len(pt.Path)-1]
	if pt.Offset == len(t.Content) && idx+1 < len(kids) && StopOnEdge(kids[idx+1]) == Inside {
		return false
	}
	if pt.Offset == 0 && idx > 0 && StopOnEdge(kids[idx-1]) == Inside {
		return false
	}
	return true
}

// Nudge moves pt to the nearest legal caret position inside the enclosing
// block. Legal points come back unchanged, so Nudge is idempotent. ok is false
// when pt does not resolve or no legal position exists; pt is then returned
// as is.
func Nudge(root tree.Node, pt tree.Point, dir Direction) (tree.Point, bool) {
	if _, err := tree.Leaf(root, pt.Path); err != nil {
		return pt, false
	}
	if Legal(root, pt) {
		return pt, true
	}
	if dir == Auto {
		dir = Forward
		if pt.Offset == 0 {
			dir = Backward
		}
	}
	positions := caretPositions(root, blockOf(root, pt.Path))
	at := indexOf(positions, pt)
	if at < 0 {
		return pt, false
	}
	if p, ok := search(root, positions, at, dir); ok {
		return p, true
	}
	if p, ok := search(root, positions, at, opposite(dir)); ok {
		return p, true
	}
	return pt, false
}

// Move steps the caret one legal position in dir (Auto counts as Forward),
// crossing text and block boundaries. ok is false at the document edges.
func Move(root tree.Node, pt tree.Point, dir Direction) (tree.Point, bool) {
	if dir == Auto {
		dir = Forward
	}
	positions := caretPositions(root, tree.Path{})
	at := indexOf(positions, pt)
	if at < 0 {
		return pt, false
	}
	return search(root, positions, at, dir)
}

// NudgeRange nudges both ends of r. moved reports whether either end changed.
func NudgeRange(root tree.Node, r *tree.Range, dir Direction) (out *tree.Range, moved bool) {
	if r == nil {
		return nil, false
	}
	a, _ := Nudge(root, r.Anchor, dir)
	f, _ := Nudge(root, r.Focus, dir)
	out = &tree.Range{Anchor: a, Focus: f}
	return out, !tree.RangeEqual(r, out)
}

// Selector is the part of an editor NudgeSelection needs.
type Selector interface {
	Root() tree.Element
	Selection() *tree.Range
	Select(r *tree.Range) error
}

// NudgeSelection fixes the selection of s in place. Nothing is applied when no
// point moves.
func NudgeSelection(s Selector, dir Direction) error {
	next, moved := NudgeRange(s.Root(), s.Selection(), dir)
	if !moved {
		return nil
	}
	return s.Select(next)
}

func opposite(d Direction) Direction {
	if d == Backward {
		return Forward
	}
	return Backward
}

func search(root tree.Node, positions []tree.Point, at int, dir Direction) (tree.Point, bool) {
	step := 1
	if dir == Backward {
		step = -1
	}
	for i := at + step; i >= 0 && i < len(positions); i += step {
		if Legal(root, positions[i]) {
			return positions[i], true
		}
	}
	return tree.Point{}, false
}

// blockOf returns the path of the nearest ancestor of p that is neither inline
// nor closed to the caret.
func blockOf(root tree.Node, p tree.Path) tree.Path {
	ancestors, err := tree.Ancestors(root, p)
	if err != nil {
		return tree.Path{}
	}
	for depth := len(ancestors) - 1; depth > 0; depth-- {
		a := ancestors[depth]
		if !tree.IsInline(a) && StopOnEdge(a) != Outside {
			return p[:depth].Clone()
		}
	}
	return tree.Path{}
}

// caretPositions lists every rune-boundary offset of every text below the
// node at base, in document order.
func caretPositions(root tree.Node, base tree.Path) []tree.Point {
	scope, err := tree.Get(root, base)
	if err != nil {
		return nil
	}
	var out []tree.Point
	tree.Texts(scope, func(t *tree.Text, rel tree.Path) bool {
		p := base.Concat(rel)
		for off := range t.Content {
			out = append(out, tree.Point{Path: p, Offset: off})
		}
		out = append(out, tree.Point{Path: p, Offset: len(t.Content)})
		return true
	})
	return out
}

func indexOf(positions []tree.Point, pt tree.Point) int {
	for i, p := range positions {
		if p.Equal(pt) {
			return i
		}
	}
	return -1
}
