/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsmith/internal/tree"
)

func para(texts ...string) *tree.Paragraph {
	p := &tree.Paragraph{}
	for _, s := range texts {
		p.Children = append(p.Children, &tree.Text{Content: s})
	}
	return p
}

// doc is
//
//	[0] field name   > [0,0] para "Llanowar Elves"
//	[1] field text   > [1,0] para "Tap: add ", "{G}" ; [1,1] para "Flavor"
//	[2] field pt     > [2,0] para "1/1"
func doc() *tree.Document {
	return &tree.Document{Children: []tree.Node{
		&tree.Field{Name: "name", Children: []tree.Node{para("Llanowar Elves")}},
		&tree.Field{Name: "text", Children: []tree.Node{para("Tap: add ", "{G}"), para("Flavor")}},
		&tree.Field{Name: "pt", Children: []tree.Node{para("1/1")}},
	}}
}

func TestInverseLaw(t *testing.T) {
	cases := []Operation{
		InsertNode{Path: tree.P(1, 1), Node: para("new")},
		InsertNode{Path: tree.P(3), Node: &tree.Field{Name: "cost", Children: []tree.Node{para("")}}},
		RemoveNode{Path: tree.P(1, 0), Node: para("Tap: add ", "{G}")},
		SetNodeProperties{Path: tree.P(0), Properties: tree.Props{"name": "name"}, NewProperties: tree.Props{"name": "title"}},
		SetNodeProperties{Path: tree.P(1, 0, 0), Properties: tree.Props{}, NewProperties: tree.Props{"bold": true}},
		InsertText{Path: tree.P(0, 0, 0), Offset: 8, Text: "ß"},
		RemoveText{Path: tree.P(0, 0, 0), Offset: 0, Text: "Llanowar "},
		MoveNode{Path: tree.P(0), NewPath: tree.P(2)},
		MoveNode{Path: tree.P(2), NewPath: tree.P(0)},
		MoveNode{Path: tree.P(1, 1), NewPath: tree.P(0, 0)},
		MoveNode{Path: tree.P(0, 0), NewPath: tree.P(1, 1)},
		MoveNode{Path: tree.P(1, 0, 1), NewPath: tree.P(2, 0, 0)},
		MoveNode{Path: tree.P(0), NewPath: tree.P(2, 1)},
		MoveNode{Path: tree.P(2), NewPath: tree.P(0, 1)},
	}
	for _, op := range cases {
		t.Run(op.String(), func(t *testing.T) {
			orig := doc()
			work := tree.Clone(orig).(tree.Element)
			require.NoError(t, Apply(work, op))
			require.False(t, tree.Equal(orig, work), "operation had no effect")
			require.NoError(t, Apply(work, op.Inverse()))
			assert.True(t, tree.Equal(orig, work), "inverse did not restore:\n%s\ngot\n%s", tree.Outline(orig), tree.Outline(work))
		})
	}
}

func TestMoveLandsWhereTransformSays(t *testing.T) {
	moves := []MoveNode{
		{Path: tree.P(0), NewPath: tree.P(2)},
		{Path: tree.P(1, 1), NewPath: tree.P(0, 0)},
		{Path: tree.P(0), NewPath: tree.P(2, 1)},
		{Path: tree.P(1, 0, 0), NewPath: tree.P(1, 1, 1)},
	}
	for _, mv := range moves {
		t.Run(mv.String(), func(t *testing.T) {
			root := doc()
			moved, err := tree.Get(root, mv.Path)
			require.NoError(t, err)
			require.NoError(t, Apply(root, mv))
			at, ok := TransformPath(mv.Path, mv)
			require.True(t, ok)
			got, err := tree.Get(root, at)
			require.NoError(t, err)
			assert.Same(t, moved, got)
		})
	}
}

func TestTransformPathUnaffected(t *testing.T) {
	p := tree.P(0, 0, 0)
	for _, op := range []Operation{
		InsertNode{Path: tree.P(1, 0), Node: para("x")},
		RemoveNode{Path: tree.P(2), Node: para("x")},
		InsertText{Path: p, Offset: 0, Text: "x"},
		SetNodeProperties{Path: tree.P(0)},
		MoveNode{Path: tree.P(1), NewPath: tree.P(3)},
	} {
		got, ok := TransformPath(p, op)
		require.True(t, ok, op.String())
		assert.Equal(t, p, got, op.String())
	}
}

func TestTransformPathShifts(t *testing.T) {
	got, ok := TransformPath(tree.P(1, 2), InsertNode{Path: tree.P(1, 0)})
	require.True(t, ok)
	assert.Equal(t, tree.P(1, 3), got)

	got, ok = TransformPath(tree.P(1, 2), InsertNode{Path: tree.P(1, 2)})
	require.True(t, ok)
	assert.Equal(t, tree.P(1, 3), got, "insert at the same path pushes the node")

	got, ok = TransformPath(tree.P(2, 0, 4), RemoveNode{Path: tree.P(1)})
	require.True(t, ok)
	assert.Equal(t, tree.P(1, 0, 4), got)

	got, ok = TransformPath(tree.P(0, 3), MoveNode{Path: tree.P(0), NewPath: tree.P(2, 1)})
	require.True(t, ok)
	assert.Equal(t, tree.P(1, 1, 3), got, "descendants follow a moved ancestor")
}

func TestTransformPathRemoved(t *testing.T) {
	_, ok := TransformPath(tree.P(1, 0, 1), RemoveNode{Path: tree.P(1)})
	assert.False(t, ok)
	_, ok = TransformPath(tree.P(1), RemoveNode{Path: tree.P(1)})
	assert.False(t, ok)
}

func TestTransformPoint(t *testing.T) {
	pt := tree.Point{Path: tree.P(0, 0, 0), Offset: 4}
	got, ok := TransformPoint(pt, InsertText{Path: pt.Path, Offset: 4, Text: "ab"})
	require.True(t, ok)
	assert.Equal(t, 6, got.Offset)

	got, _ = TransformPoint(pt, InsertText{Path: pt.Path, Offset: 5, Text: "ab"})
	assert.Equal(t, 4, got.Offset)

	got, _ = TransformPoint(pt, RemoveText{Path: pt.Path, Offset: 2, Text: "abcd"})
	assert.Equal(t, 2, got.Offset, "a point inside the removed span collapses to its start")

	got, _ = TransformPoint(pt, RemoveText{Path: pt.Path, Offset: 0, Text: "ab"})
	assert.Equal(t, 2, got.Offset)

	assert.Nil(t, TransformRange(tree.Caret(pt), RemoveNode{Path: tree.P(0)}))
}

func TestApplyRejects(t *testing.T) {
	cases := []Operation{
		InsertNode{Path: tree.P(5, 0), Node: para("x")},
		InsertNode{Path: tree.P(4), Node: para("x")},
		InsertNode{Path: tree.P(0)},
		RemoveNode{Path: tree.P(3)},
		RemoveNode{Path: tree.Path{}},
		MoveNode{Path: tree.P(0), NewPath: tree.P(0, 0, 1)},
		MoveNode{Path: tree.P(0), NewPath: tree.P(9, 0)},
		SetNodeProperties{Path: tree.P(0), NewProperties: tree.Props{"color": "W"}},
		SetNodeProperties{Path: tree.P(0, 0), NewProperties: tree.Props{"align": "left"}},
		InsertText{Path: tree.P(0, 0), Offset: 0, Text: "x"},
		InsertText{Path: tree.P(0, 0, 0), Offset: 99, Text: "x"},
		RemoveText{Path: tree.P(0, 0, 0), Offset: 0, Text: "Elves"},
		RemoveText{Path: tree.P(2, 0, 0), Offset: 1, Text: "/1/"},
	}
	for _, op := range cases {
		t.Run(op.String(), func(t *testing.T) {
			root := doc()
			err := Apply(root, op)
			require.ErrorIs(t, err, ErrInvalidOperation)
			assert.True(t, tree.Equal(doc(), root), "failed operation mutated the tree")
		})
	}
}

func TestApplyRejectsSplitRune(t *testing.T) {
	root := &tree.Paragraph{Children: []tree.Node{&tree.Text{Content: "—x"}}}
	err := Apply(root, InsertText{Path: tree.P(0), Offset: 1, Text: "a"})
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestMoveFailureRestores(t *testing.T) {
	root := doc()
	// destination parent exists but index is past the end once the node is out
	err := Apply(root, MoveNode{Path: tree.P(1, 0), NewPath: tree.P(1, 3)})
	require.ErrorIs(t, err, ErrInvalidOperation)
	assert.True(t, tree.Equal(doc(), root))
}

func TestRelativizeAbsolutize(t *testing.T) {
	base := tree.P(1)
	op := SetSelection{NewSelection: &tree.Range{
		Anchor: tree.Point{Path: tree.P(1, 0, 0), Offset: 1},
		Focus:  tree.Point{Path: tree.P(1, 1, 0), Offset: 2},
	}}
	rel, err := Relativize(op, base)
	require.NoError(t, err)
	sel := rel.(SetSelection).NewSelection
	assert.Equal(t, tree.P(0, 0), sel.Anchor.Path)
	assert.Equal(t, tree.P(1, 0), sel.Focus.Path)
	assert.Equal(t, op, Absolutize(rel, base))

	_, err = Relativize(InsertText{Path: tree.P(0, 0, 0)}, base)
	require.ErrorIs(t, err, tree.ErrNotAncestor)
}

func TestRefTable(t *testing.T) {
	refs := NewRefTable()
	text := refs.Track(tree.P(1))
	pt := refs.Track(tree.P(2))

	refs.Transform(InsertNode{Path: tree.P(0), Node: para("")})
	p, ok := refs.Path(text)
	require.True(t, ok)
	assert.Equal(t, tree.P(2), p)

	refs.Transform(RemoveNode{Path: tree.P(3)})
	_, ok = refs.Path(pt)
	assert.False(t, ok, "removed node")
	assert.Equal(t, 2, refs.Len(), "handles stay live until released")

	refs.Transform(SetSelection{})
	last, ok := refs.Release(text)
	require.True(t, ok)
	assert.Equal(t, tree.P(2), last)
	refs.Release(pt)
	assert.Equal(t, 0, refs.Len())
}

func TestRefTableRoot(t *testing.T) {
	refs := NewRefTable()
	r := refs.Track(nil)
	p, ok := refs.Path(r)
	require.True(t, ok)
	assert.Equal(t, 0, len(p))
	refs.Transform(RemoveNode{Path: tree.P(0)})
	_, ok = refs.Path(r)
	assert.True(t, ok, "root survives child removal")
}
