/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package autoreplace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsmith/internal/cursor"
	"cardsmith/internal/editor"
	"cardsmith/internal/tree"
	"cardsmith/internal/undo"
)

type harness struct {
	ed  *editor.Editor
	h   *undo.Manager
	eng *Engine
}

func newHarness(t *testing.T, texts ...*tree.Text) *harness {
	t.Helper()
	p := &tree.Paragraph{}
	for _, x := range texts {
		p.Children = append(p.Children, x)
	}
	ed := editor.New("hub", &tree.Field{Name: "card_text", Children: []tree.Node{p}})
	h := undo.NewManager(undo.Config{
		Apply:   ed.Apply,
		Restore: func(f undo.Focus) { _ = ed.RestoreFocus(f) },
	})
	ed.Observe(h.Record)
	return &harness{ed: ed, h: h, eng: New()}
}

// typeText inserts s at the caret and runs the engine, like one keystroke.
func (x *harness) typeText(t *testing.T, s string) bool {
	t.Helper()
	sel := x.ed.Selection()
	require.NotNil(t, sel)
	require.NoError(t, x.ed.InsertText(sel.Focus, s))
	fired, err := x.eng.Run(x.ed, x.h)
	require.NoError(t, err)
	return fired
}

func (x *harness) paragraph() *tree.Paragraph {
	return x.ed.Root().Nodes()[0].(*tree.Paragraph)
}

func caretAt(off int, p ...int) *tree.Range {
	return tree.Caret(tree.Point{Path: tree.P(p...), Offset: off})
}

func TestColoredPip(t *testing.T) {
	x := newHarness(t, &tree.Text{Content: "Pay "})
	require.NoError(t, x.ed.Select(caretAt(4, 0, 0)))
	assert.False(t, x.typeText(t, "{"))
	assert.False(t, x.typeText(t, "W"))
	assert.True(t, x.typeText(t, "}"))

	kids := x.paragraph().Children
	require.Len(t, kids, 3)
	assert.Equal(t, "Pay ", kids[0].(*tree.Text).Content)
	pip := kids[1].(*tree.ManaPip)
	assert.True(t, tree.IsAtomic(pip))
	assert.Equal(t, "W", pip.Color)
	assert.Equal(t, "symbols/w.svg", pip.Children[1].(*tree.Icon).Src)
	assert.Equal(t, "", kids[2].(*tree.Text).Content)
	assert.Equal(t, caretAt(0, 0, 2), x.ed.Selection())
}

func TestGenericPip(t *testing.T) {
	x := newHarness(t, &tree.Text{Content: ""})
	require.NoError(t, x.ed.Select(caretAt(0, 0, 0)))
	for _, k := range []string{"{", "1", "5"} {
		require.False(t, x.typeText(t, k))
	}
	require.True(t, x.typeText(t, "}"))
	pip := x.paragraph().Children[1].(*tree.ManaPip)
	assert.Equal(t, "generic", pip.Color)
	assert.False(t, tree.IsAtomic(pip))
	assert.Equal(t, "15", tree.PlainText(pip))
}

func TestCaretAfterGenericPipIsLegal(t *testing.T) {
	x := newHarness(t, &tree.Text{Content: "{5"})
	require.NoError(t, x.ed.Select(caretAt(2, 0, 0)))
	require.True(t, x.typeText(t, "}"))

	sel := x.ed.Selection()
	require.NotNil(t, sel)
	assert.True(t, cursor.Legal(x.ed.Root(), sel.Focus), sel.Focus.String())
	assert.Equal(t, caretAt(1, 0, 1, 0), sel)

	// a colored pip leaves the caret right after it
	x = newHarness(t, &tree.Text{Content: "{G"})
	require.NoError(t, x.ed.Select(caretAt(2, 0, 0)))
	require.True(t, x.typeText(t, "}"))
	assert.Equal(t, caretAt(0, 0, 2), x.ed.Selection())
	assert.True(t, cursor.Legal(x.ed.Root(), x.ed.Selection().Focus))
}

func TestTapPip(t *testing.T) {
	x := newHarness(t, &tree.Text{Content: "{T"})
	require.NoError(t, x.ed.Select(caretAt(2, 0, 0)))
	require.True(t, x.typeText(t, "}"))
	pip := x.paragraph().Children[1].(*tree.ManaPip)
	assert.Equal(t, "T", pip.Color)
	assert.True(t, tree.IsAtomic(pip))
}

func TestEmDash(t *testing.T) {
	x := newHarness(t, &tree.Text{Content: "wordword"})
	require.NoError(t, x.ed.Select(caretAt(4, 0, 0)))
	assert.False(t, x.typeText(t, "-"))
	assert.True(t, x.typeText(t, "-"))
	assert.Equal(t, "word—word", tree.PlainText(x.paragraph()))
	assert.Equal(t, caretAt(len("word—"), 0, 0), x.ed.Selection())
	assert.Len(t, x.paragraph().Children, 1)
}

func TestSpacedDash(t *testing.T) {
	x := newHarness(t, &tree.Text{Content: "Flying -"})
	require.NoError(t, x.ed.Select(caretAt(8, 0, 0)))
	assert.True(t, x.typeText(t, " "))
	assert.Equal(t, "Flying — ", tree.PlainText(x.paragraph()))
}

func TestKeepsMarksOnTail(t *testing.T) {
	x := newHarness(t, &tree.Text{Content: "Add {Gnow", Bold: true})
	require.NoError(t, x.ed.Select(caretAt(6, 0, 0)))
	require.True(t, x.typeText(t, "}"))
	kids := x.paragraph().Children
	require.Len(t, kids, 3)
	tail := kids[2].(*tree.Text)
	assert.Equal(t, "now", tail.Content)
	assert.True(t, tail.Bold)
	assert.Equal(t, "Add ", kids[0].(*tree.Text).Content)
}

func TestCaretOutsideMatch(t *testing.T) {
	x := newHarness(t, &tree.Text{Content: "{W} "})
	require.NoError(t, x.ed.Select(caretAt(4, 0, 0)))
	assert.False(t, x.typeText(t, "x"))
	assert.Equal(t, "{W} x", tree.PlainText(x.paragraph()))
}

func TestExpandedSelectionSkipped(t *testing.T) {
	x := newHarness(t, &tree.Text{Content: "a--"})
	require.NoError(t, x.ed.Select(&tree.Range{
		Anchor: tree.Point{Path: tree.P(0, 0)},
		Focus:  tree.Point{Path: tree.P(0, 0), Offset: 3},
	}))
	fired, err := x.eng.Run(x.ed, x.h)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestNotInsidePip(t *testing.T) {
	x := newHarness(t, &tree.Text{Content: "a"})
	pip := &tree.ManaPip{Color: "generic", Children: []tree.Node{&tree.Text{Content: "{T}"}}}
	require.NoError(t, x.ed.InsertNodes(tree.P(0, 1), pip, &tree.Text{}))
	require.NoError(t, x.ed.Select(caretAt(3, 0, 1, 0)))
	fired, err := x.eng.Run(x.ed, x.h)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestOneUndoRevertsKeystrokeAndSubstitution(t *testing.T) {
	x := newHarness(t, &tree.Text{Content: "Pay "})
	require.NoError(t, x.ed.Select(caretAt(4, 0, 0)))
	x.typeText(t, "{")
	x.typeText(t, "W")
	x.h.SplitNext()
	require.True(t, x.typeText(t, "}"))
	require.Len(t, x.paragraph().Children, 3)

	ok, err := x.h.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, x.paragraph().Children, 1)
	assert.Equal(t, "Pay {W", tree.PlainText(x.paragraph()))

	ok, err = x.h.Redo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, x.paragraph().Children, 3)
}

func TestTypingAndSubstitutionMergeIntoOneStep(t *testing.T) {
	x := newHarness(t, &tree.Text{Content: "Pay "})
	require.NoError(t, x.ed.Select(caretAt(4, 0, 0)))
	for _, k := range []string{"{", "W", "}"} {
		x.typeText(t, k)
	}
	steps, _ := x.h.Stats()
	assert.Equal(t, 1, steps)
	_, err := x.h.Undo()
	require.NoError(t, err)
	assert.Equal(t, "Pay ", tree.PlainText(x.paragraph()))
}

func TestCustomIcons(t *testing.T) {
	rules := Rules(func(s string) string { return "blob:" + s })
	x := newHarness(t, &tree.Text{Content: "{U"})
	x.eng = New(rules...)
	require.NoError(t, x.ed.Select(caretAt(2, 0, 0)))
	require.True(t, x.typeText(t, "}"))
	icon := x.paragraph().Children[1].(*tree.ManaPip).Children[1].(*tree.Icon)
	assert.Equal(t, "blob:U", icon.Src)
	assert.Equal(t, "{U}", icon.Alt)
}

var _ Target = (*editor.Editor)(nil)
