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
	"errors"
	"fmt"
	"unicode/utf8"

	"cardsmith/internal/tree"
)

// ErrInvalidOperation marks an operation that does not fit the tree it is
// applied to. It signals a programming error, never a user condition.
var ErrInvalidOperation = errors.New("invalid operation")

func invalid(op Operation, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidOperation, op, fmt.Sprintf(format, args...))
}

// Apply mutates root in place. The tree is left untouched when an error is
// returned. SetSelection does not touch the tree and always succeeds.
func Apply(root tree.Element, op Operation) error {
	switch o := op.(type) {
	case InsertNode:
		return applyInsertNode(root, o)
	case RemoveNode:
		return applyRemoveNode(root, o)
	case MoveNode:
		return applyMoveNode(root, o)
	case SetNodeProperties:
		return applySetNode(root, o)
	case InsertText:
		return applyInsertText(root, o)
	case RemoveText:
		return applyRemoveText(root, o)
	case SetSelection:
		return nil
	}
	panic(fmt.Sprintf("ops: unhandled operation %T", op))
}

func parentOf(root tree.Element, op Operation, p tree.Path) (tree.Element, int, error) {
	if len(p) == 0 {
		return nil, 0, invalid(op, "the root cannot be targeted")
	}
	parent, err := tree.GetElement(root, p.Parent())
	if err != nil {
		return nil, 0, invalid(op, "%v", err)
	}
	return parent, p[len(p)-1], nil
}

func applyInsertNode(root tree.Element, o InsertNode) error {
	if o.Node == nil {
		return invalid(o, "no node")
	}
	parent, idx, err := parentOf(root, o, o.Path)
	if err != nil {
		return err
	}
	kids := parent.Nodes()
	if idx < 0 || idx > len(kids) {
		return invalid(o, "index %d outside 0..%d", idx, len(kids))
	}
	parent.SetNodes(insertAt(kids, idx, tree.Clone(o.Node)))
	return nil
}

func applyRemoveNode(root tree.Element, o RemoveNode) error {
	parent, idx, err := parentOf(root, o, o.Path)
	if err != nil {
		return err
	}
	kids := parent.Nodes()
	if idx < 0 || idx >= len(kids) {
		return invalid(o, "index %d outside 0..%d", idx, len(kids)-1)
	}
	parent.SetNodes(removeAt(kids, idx))
	return nil
}

func applyMoveNode(root tree.Element, o MoveNode) error {
	if o.Path.IsAncestor(o.NewPath) {
		return invalid(o, "cannot move a node inside itself")
	}
	if len(o.NewPath) == 0 {
		return invalid(o, "the root cannot be a destination")
	}
	parent, idx, err := parentOf(root, o, o.Path)
	if err != nil {
		return err
	}
	kids := parent.Nodes()
	if idx < 0 || idx >= len(kids) {
		return invalid(o, "index %d outside 0..%d", idx, len(kids)-1)
	}
	if o.Path.Equal(o.NewPath) {
		return nil
	}
	node := kids[idx]
	parent.SetNodes(removeAt(kids, idx))

	dst, _ := TransformPath(o.Path, o)
	newParent, err := tree.GetElement(root, dst.Parent())
	newIdx := dst[len(dst)-1]
	if err == nil && (newIdx < 0 || newIdx > len(newParent.Nodes())) {
		err = fmt.Errorf("index %d outside 0..%d", newIdx, len(newParent.Nodes()))
	}
	if err != nil {
		// put it back before reporting
		parent.SetNodes(insertAt(parent.Nodes(), idx, node))
		return invalid(o, "%v", err)
	}
	newParent.SetNodes(insertAt(newParent.Nodes(), newIdx, node))
	return nil
}

func applySetNode(root tree.Element, o SetNodeProperties) error {
	if len(o.Path) == 0 {
		return invalid(o, "the root has no properties")
	}
	n, err := tree.Get(root, o.Path)
	if err != nil {
		return invalid(o, "%v", err)
	}
	before := n.Props()
	restore := func() {
		for k, v := range before {
			_ = n.SetProp(k, v)
		}
	}
	for k, v := range o.NewProperties {
		if err := n.SetProp(k, v); err != nil {
			restore()
			return invalid(o, "%v", err)
		}
	}
	for k := range o.Properties {
		if _, kept := o.NewProperties[k]; kept {
			continue
		}
		if err := n.SetProp(k, nil); err != nil {
			restore()
			return invalid(o, "%v", err)
		}
	}
	return nil
}

func applyInsertText(root tree.Element, o InsertText) error {
	t, err := tree.Leaf(root, o.Path)
	if err != nil {
		return invalid(o, "%v", err)
	}
	if o.Offset < 0 || o.Offset > len(t.Content) {
		return invalid(o, "offset %d outside 0..%d", o.Offset, len(t.Content))
	}
	if !utf8.RuneStart(byteAt(t.Content, o.Offset)) {
		return invalid(o, "offset %d splits a character", o.Offset)
	}
	t.Content = t.Content[:o.Offset] + o.Text + t.Content[o.Offset:]
	return nil
}

func applyRemoveText(root tree.Element, o RemoveText) error {
	t, err := tree.Leaf(root, o.Path)
	if err != nil {
		return invalid(o, "%v", err)
	}
	end := o.Offset + len(o.Text)
	if o.Offset < 0 || end > len(t.Content) {
		return invalid(o, "range %d..%d outside text of length %d", o.Offset, end, len(t.Content))
	}
	if t.Content[o.Offset:end] != o.Text {
		return invalid(o, "text differs: found %q", t.Content[o.Offset:end])
	}
	t.Content = t.Content[:o.Offset] + t.Content[end:]
	return nil
}

// byteAt returns a rune-start byte at the end of s so that appending is legal.
func byteAt(s string, i int) byte {
	if i >= len(s) {
		return 0
	}
	return s[i]
}

func insertAt(nodes []tree.Node, i int, n tree.Node) []tree.Node {
	out := make([]tree.Node, 0, len(nodes)+1)
	out = append(out, nodes[:i]...)
	out = append(out, n)
	return append(out, nodes[i:]...)
}

func removeAt(nodes []tree.Node, i int) []tree.Node {
	out := make([]tree.Node, 0, len(nodes)-1)
	out = append(out, nodes[:i]...)
	return append(out, nodes[i+1:]...)
}
