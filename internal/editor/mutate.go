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
	"fmt"
	"maps"

	"cardsmith/internal/ops"
	"cardsmith/internal/tree"
)

// InsertNodes inserts nodes as consecutive siblings starting at p.
func (e *Editor) InsertNodes(p tree.Path, nodes ...tree.Node) error {
	at := p.Clone()
	for _, n := range nodes {
		if err := e.Apply(ops.InsertNode{Path: at, Node: n}); err != nil {
			return err
		}
		at = at.Next()
	}
	return nil
}

// RemoveNodes removes n consecutive siblings starting at p.
func (e *Editor) RemoveNodes(p tree.Path, n int) error {
	for i := 0; i < n; i++ {
		node, err := tree.Get(e.root, p)
		if err != nil {
			return fmt.Errorf("%w: remove %s: %v", ops.ErrInvalidOperation, p, err)
		}
		if err := e.Apply(ops.RemoveNode{Path: p.Clone(), Node: tree.Clone(node)}); err != nil {
			return err
		}
	}
	return nil
}

// MoveNode moves the node at from so that it ends up at to, with to given in
// coordinates from before the move.
func (e *Editor) MoveNode(from, to tree.Path) error {
	return e.Apply(ops.MoveNode{Path: from.Clone(), NewPath: to.Clone()})
}

// SetNodeProperties changes the listed properties of the node at p.
func (e *Editor) SetNodeProperties(p tree.Path, props tree.Props) error {
	n, err := tree.Get(e.root, p)
	if err != nil {
		return fmt.Errorf("%w: set properties at %s: %v", ops.ErrInvalidOperation, p, err)
	}
	cur := n.Props()
	old := make(tree.Props, len(props))
	for k := range props {
		if v, ok := cur[k]; ok {
			old[k] = v
		}
	}
	return e.Apply(ops.SetNodeProperties{Path: p.Clone(), Properties: old, NewProperties: maps.Clone(props)})
}

// InsertText inserts s at pt. Empty text is a no-op.
func (e *Editor) InsertText(pt tree.Point, s string) error {
	if s == "" {
		return nil
	}
	return e.Apply(ops.InsertText{Path: pt.Path.Clone(), Offset: pt.Offset, Text: s})
}

// RemoveText removes n bytes starting at pt.
func (e *Editor) RemoveText(pt tree.Point, n int) error {
	if n == 0 {
		return nil
	}
	t, err := tree.Leaf(e.root, pt.Path)
	if err != nil {
		return fmt.Errorf("%w: remove text at %s: %v", ops.ErrInvalidOperation, pt, err)
	}
	end := pt.Offset + n
	if pt.Offset < 0 || n < 0 || end > len(t.Content) {
		return fmt.Errorf("%w: remove %d bytes at %s from text of length %d", ops.ErrInvalidOperation, n, pt, len(t.Content))
	}
	return e.Apply(ops.RemoveText{Path: pt.Path.Clone(), Offset: pt.Offset, Text: t.Content[pt.Offset:end]})
}

// Select replaces the selection; nil deselects.
func (e *Editor) Select(r *tree.Range) error {
	return e.Apply(ops.SetSelection{NewSelection: r})
}

func (e *Editor) Deselect() error { return e.Select(nil) }
