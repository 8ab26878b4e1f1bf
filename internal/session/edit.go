/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package session

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"cardsmith/internal/editor"
	"cardsmith/internal/tree"
)

// ErrSpansBlocks is returned for range edits whose ends lie in different blocks.
var ErrSpansBlocks = errors.New("selection spans more than one block")

// Type inserts text at the caret one character at a time, the way a keyboard
// does, replacing a non-collapsed selection first. Auto-replace runs after
// every character. Anything but a digit typed at the end of a generic pip
// goes to the text after it.
func (s *Session) Type(text string) error {
	ed := s.Editor()
	sel := ed.Selection()
	if sel == nil {
		return ErrNoSelection
	}
	if !sel.IsCollapsed() {
		if err := s.history.Group(func() error { return deleteRange(ed, sel) }); err != nil {
			return err
		}
	}
	for _, r := range text {
		sel = ed.Selection()
		if sel == nil {
			return ErrNoSelection
		}
		pt := sel.Focus
		if out, ok := pipExit(ed.Root(), pt, r); ok {
			if err := ed.Select(tree.Caret(out)); err != nil {
				return err
			}
			pt = out
		}
		if err := ed.InsertText(pt, string(r)); err != nil {
			return fmt.Errorf("type %q: %w", r, err)
		}
		if s.replace == nil {
			continue
		}
		if _, err := s.replace.Run(ed, s.history); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the selection, or one character or inline symbol next to the
// caret. At a paragraph edge the neighboring paragraph is joined in.
func (s *Session) Delete(backward bool) error {
	ed := s.Editor()
	sel := ed.Selection()
	if sel == nil {
		return ErrNoSelection
	}
	if !sel.IsCollapsed() {
		return s.history.Group(func() error { return deleteRange(ed, sel) })
	}
	pt := sel.Focus
	t, err := tree.Leaf(ed.Root(), pt.Path)
	if err != nil {
		return err
	}
	switch {
	case backward && pt.Offset > 0:
		_, size := utf8.DecodeLastRuneInString(t.Content[:pt.Offset])
		return ed.RemoveText(tree.Point{Path: pt.Path, Offset: pt.Offset - size}, size)
	case !backward && pt.Offset < len(t.Content):
		_, size := utf8.DecodeRuneInString(t.Content[pt.Offset:])
		return ed.RemoveText(pt, size)
	}
	return s.history.Group(func() error { return deleteAcross(ed, pt, backward) })
}

// deleteAcross handles a delete at the edge of a text: an inline neighbor is
// removed, otherwise the neighboring paragraph is joined.
func deleteAcross(ed *editor.Editor, pt tree.Point, backward bool) error {
	root := ed.Root()
	if sib, ok := neighbor(pt.Path, backward); ok && tree.Has(root, sib) {
		switch n := mustGet(root, sib).(type) {
		case *tree.Text:
			return deleteRune(ed, sib, n, backward)
		default:
			if !tree.IsInline(n) {
				return nil
			}
		}
		if err := ed.RemoveNodes(sib, 1); err != nil {
			return err
		}
		if !backward {
			return mergeTexts(ed, pt.Path)
		}
		if left, ok := sib.Previous(); ok {
			return mergeTexts(ed, left)
		}
		return nil
	}

	block := pt.Path.Parent()
	if _, ok := mustGet(root, block).(*tree.Paragraph); !ok || len(block) == 0 {
		return nil
	}
	other, ok := neighbor(block, backward)
	if !ok {
		return nil
	}
	if _, ok := mustGet(root, other).(*tree.Paragraph); !ok {
		return nil
	}
	into, from := other, block
	if !backward {
		into, from = block, other
	}
	return joinParagraphs(ed, into, from)
}

// deleteRune removes the character of t nearest to the caret: its last one
// going backward, its first one going forward.
func deleteRune(ed *editor.Editor, p tree.Path, t *tree.Text, backward bool) error {
	if t.Content == "" {
		return nil
	}
	if backward {
		_, size := utf8.DecodeLastRuneInString(t.Content)
		return ed.RemoveText(tree.Point{Path: p, Offset: len(t.Content) - size}, size)
	}
	_, size := utf8.DecodeRuneInString(t.Content)
	return ed.RemoveText(tree.Point{Path: p}, size)
}

// pipExit moves a caret resting at the end of a generic pip to the start of
// the text after it when r is not a digit.
func pipExit(root tree.Node, pt tree.Point, r rune) (tree.Point, bool) {
	if unicode.IsDigit(r) || len(pt.Path) < 2 {
		return pt, false
	}
	t, err := tree.Leaf(root, pt.Path)
	if err != nil || pt.Offset != len(t.Content) {
		return pt, false
	}
	at := pt.Path.Parent()
	pip, ok := mustGet(root, at).(*tree.ManaPip)
	if !ok || tree.IsAtomic(pip) || pt.Path[len(pt.Path)-1] != len(pip.Children)-1 {
		return pt, false
	}
	if _, err := tree.Leaf(root, at.Next()); err != nil {
		return pt, false
	}
	return tree.Point{Path: at.Next()}, true
}

func neighbor(p tree.Path, backward bool) (tree.Path, bool) {
	if len(p) == 0 {
		return nil, false
	}
	if backward {
		return p.Previous()
	}
	return p.Next(), true
}

func mustGet(root tree.Node, p tree.Path) tree.Node {
	n, err := tree.Get(root, p)
	if err != nil {
		return nil
	}
	return n
}

// joinParagraphs moves the children of from to the end of into, which
// precedes it, and removes the emptied paragraph.
func joinParagraphs(ed *editor.Editor, into, from tree.Path) error {
	root := ed.Root()
	dst, ok := mustGet(root, into).(*tree.Paragraph)
	if !ok {
		return nil
	}
	src, ok := mustGet(root, from).(*tree.Paragraph)
	if !ok {
		return nil
	}
	m, n := len(dst.Children), len(src.Children)
	for k := 0; k < n; k++ {
		if err := ed.MoveNode(from.Append(0), into.Append(m+k)); err != nil {
			return err
		}
	}
	if err := ed.RemoveNodes(from, 1); err != nil {
		return err
	}
	if m == 0 {
		return nil
	}
	return mergeTexts(ed, into.Append(m-1))
}

// mergeTexts folds the text after left into left when both are texts with the
// same marks, leaving the caret at the seam.
func mergeTexts(ed *editor.Editor, left tree.Path) error {
	root := ed.Root()
	l, ok := mustGet(root, left).(*tree.Text)
	if !ok {
		return nil
	}
	right := left.Next()
	r, ok := mustGet(root, right).(*tree.Text)
	if !ok || l.Bold != r.Bold || l.Italic != r.Italic {
		return nil
	}
	seam := tree.Point{Path: left.Clone(), Offset: len(l.Content)}
	if err := ed.InsertText(seam, r.Content); err != nil {
		return err
	}
	if err := ed.RemoveNodes(right, 1); err != nil {
		return err
	}
	return ed.Select(tree.Caret(seam))
}

// deleteRange removes the content of r. Both ends must share a parent.
func deleteRange(ed *editor.Editor, r *tree.Range) error {
	start, end := r.Edges()
	if start.Path.Equal(end.Path) {
		return ed.RemoveText(start, end.Offset-start.Offset)
	}
	if !start.Path.Parent().Equal(end.Path.Parent()) {
		return fmt.Errorf("delete %s: %w", r, ErrSpansBlocks)
	}
	if err := ed.RemoveText(tree.Point{Path: end.Path}, end.Offset); err != nil {
		return err
	}
	between := end.Path[len(end.Path)-1] - start.Path[len(start.Path)-1] - 1
	if err := ed.RemoveNodes(start.Path.Next(), between); err != nil {
		return err
	}
	t, err := tree.Leaf(ed.Root(), start.Path)
	if err != nil {
		return err
	}
	if err := ed.RemoveText(start, len(t.Content)-start.Offset); err != nil {
		return err
	}
	if err := ed.Select(tree.Caret(start)); err != nil {
		return err
	}
	return mergeTexts(ed, start.Path)
}

// ToggleMark sets mark ("bold" or "italic") on every text in the selection,
// or clears it when all of them carry it already. Texts are split at the
// selection edges. A collapsed selection is left alone.
func (s *Session) ToggleMark(mark string) error {
	if mark != "bold" && mark != "italic" {
		return fmt.Errorf("unknown mark %q", mark)
	}
	ed := s.Editor()
	sel := ed.Selection()
	if sel == nil {
		return ErrNoSelection
	}
	if sel.IsCollapsed() {
		return nil
	}
	start, end := sel.Edges()
	parent := start.Path.Parent()
	if !parent.Equal(end.Path.Parent()) {
		return fmt.Errorf("toggle %s on %s: %w", mark, sel, ErrSpansBlocks)
	}
	return s.history.Group(func() error {
		stop, _, err := splitText(ed, end)
		if err != nil {
			return err
		}
		first, split, err := splitText(ed, start)
		if err != nil {
			return err
		}
		if split {
			stop++
		}
		var texts []tree.Path
		all := true
		for i := first; i < stop; i++ {
			p := parent.Append(i)
			if t, ok := mustGet(ed.Root(), p).(*tree.Text); ok {
				texts = append(texts, p)
				all = all && t.Props()[mark] == true
			}
		}
		for _, p := range texts {
			if err := ed.SetNodeProperties(p, tree.Props{mark: !all}); err != nil {
				return err
			}
		}
		if len(texts) == 0 {
			return nil
		}
		a := tree.Point{Path: texts[0]}
		last, _ := tree.Leaf(ed.Root(), texts[len(texts)-1])
		f := tree.Point{Path: texts[len(texts)-1], Offset: len(last.Content)}
		return ed.Select(&tree.Range{Anchor: a, Focus: f})
	})
}

// splitText splits the text at pt in two and returns the index, within the
// text's parent, of the first node after pt. split reports whether a node was
// added.
func splitText(ed *editor.Editor, pt tree.Point) (idx int, split bool, err error) {
	t, err := tree.Leaf(ed.Root(), pt.Path)
	if err != nil {
		return 0, false, err
	}
	i := pt.Path[len(pt.Path)-1]
	switch pt.Offset {
	case 0:
		return i, false, nil
	case len(t.Content):
		return i + 1, false, nil
	}
	tail := &tree.Text{Content: t.Content[pt.Offset:], Bold: t.Bold, Italic: t.Italic}
	if err := ed.RemoveText(pt, len(tail.Content)); err != nil {
		return 0, false, err
	}
	if err := ed.InsertNodes(pt.Path.Next(), tail); err != nil {
		return 0, false, err
	}
	return i + 1, true, nil
}
