/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package ops holds the atomic tree edits, their inverses, the engine that
// applies them, and the rules for carrying paths and points across an edit.
package ops

import (
	"fmt"

	"cardsmith/internal/tree"
)

// Operation is one atomic edit. The set of variants is closed.
type Operation interface {
	// Inverse returns the operation that undoes this one.
	Inverse() Operation
	String() string
	operation()
}

type InsertNode struct {
	Path tree.Path
	Node tree.Node
}

type RemoveNode struct {
	Path tree.Path
	Node tree.Node
}

// MoveNode moves the node at Path so that it ends up at NewPath, where NewPath
// is expressed in coordinates from before the move.
type MoveNode struct {
	Path    tree.Path
	NewPath tree.Path
}

type SetNodeProperties struct {
	Path          tree.Path
	Properties    tree.Props
	NewProperties tree.Props
}

type InsertText struct {
	Path   tree.Path
	Offset int
	Text   string
}

type RemoveText struct {
	Path   tree.Path
	Offset int
	Text   string
}

// SetSelection replaces the selection; either side may be nil.
type SetSelection struct {
	Selection    *tree.Range
	NewSelection *tree.Range
}

func (InsertNode) operation()        {}
func (RemoveNode) operation()        {}
func (MoveNode) operation()          {}
func (SetNodeProperties) operation() {}
func (InsertText) operation()        {}
func (RemoveText) operation()        {}
func (SetSelection) operation()      {}

func (o InsertNode) Inverse() Operation { return RemoveNode{Path: o.Path.Clone(), Node: o.Node} }
func (o RemoveNode) Inverse() Operation { return InsertNode{Path: o.Path.Clone(), Node: o.Node} }

func (o MoveNode) Inverse() Operation {
	if o.Path.Equal(o.NewPath) {
		return o
	}
	if o.Path.IsSibling(o.NewPath) {
		return MoveNode{Path: o.NewPath.Clone(), NewPath: o.Path.Clone()}
	}
	// The moved node now lives where Path transforms to; sending it to where
	// its old next sibling went puts it back in front of that sibling.
	inv, _ := TransformPath(o.Path, o)
	next, _ := TransformPath(o.Path.Next(), o)
	return MoveNode{Path: inv, NewPath: next}
}

func (o SetNodeProperties) Inverse() Operation {
	return SetNodeProperties{Path: o.Path.Clone(), Properties: o.NewProperties, NewProperties: o.Properties}
}

func (o InsertText) Inverse() Operation {
	return RemoveText{Path: o.Path.Clone(), Offset: o.Offset, Text: o.Text}
}

func (o RemoveText) Inverse() Operation {
	return InsertText{Path: o.Path.Clone(), Offset: o.Offset, Text: o.Text}
}

func (o SetSelection) Inverse() Operation {
	return SetSelection{Selection: o.NewSelection.Clone(), NewSelection: o.Selection.Clone()}
}

func (o InsertNode) String() string {
	return fmt.Sprintf("insert_node %s %s", o.Path, kindOf(o.Node))
}

func (o RemoveNode) String() string {
	return fmt.Sprintf("remove_node %s %s", o.Path, kindOf(o.Node))
}

func (o MoveNode) String() string { return fmt.Sprintf("move_node %s -> %s", o.Path, o.NewPath) }

func (o SetNodeProperties) String() string {
	return fmt.Sprintf("set_node %s %v -> %v", o.Path, o.Properties, o.NewProperties)
}

func (o InsertText) String() string {
	return fmt.Sprintf("insert_text %s@%d %q", o.Path, o.Offset, o.Text)
}

func (o RemoveText) String() string {
	return fmt.Sprintf("remove_text %s@%d %q", o.Path, o.Offset, o.Text)
}

func (o SetSelection) String() string {
	return fmt.Sprintf("set_selection %s -> %s", o.Selection, o.NewSelection)
}

func kindOf(n tree.Node) string {
	if n == nil {
		return "<nil>"
	}
	return string(n.Kind())
}

// PathOf returns the primary path an operation targets; SetSelection has none.
func PathOf(op Operation) (tree.Path, bool) {
	switch o := op.(type) {
	case InsertNode:
		return o.Path, true
	case RemoveNode:
		return o.Path, true
	case MoveNode:
		return o.Path, true
	case SetNodeProperties:
		return o.Path, true
	case InsertText:
		return o.Path, true
	case RemoveText:
		return o.Path, true
	case SetSelection:
		return nil, false
	}
	panic(fmt.Sprintf("ops: unhandled operation %T", op))
}

// MapPaths returns a copy of op with every path (and selection point) passed
// through fn. fn may fail, for example when relativizing.
func MapPaths(op Operation, fn func(tree.Path) (tree.Path, error)) (Operation, error) {
	switch o := op.(type) {
	case InsertNode:
		p, err := fn(o.Path)
		if err != nil {
			return nil, err
		}
		return InsertNode{Path: p, Node: o.Node}, nil
	case RemoveNode:
		p, err := fn(o.Path)
		if err != nil {
			return nil, err
		}
		return RemoveNode{Path: p, Node: o.Node}, nil
	case MoveNode:
		p, err := fn(o.Path)
		if err != nil {
			return nil, err
		}
		np, err := fn(o.NewPath)
		if err != nil {
			return nil, err
		}
		return MoveNode{Path: p, NewPath: np}, nil
	case SetNodeProperties:
		p, err := fn(o.Path)
		if err != nil {
			return nil, err
		}
		return SetNodeProperties{Path: p, Properties: o.Properties, NewProperties: o.NewProperties}, nil
	case InsertText:
		p, err := fn(o.Path)
		if err != nil {
			return nil, err
		}
		return InsertText{Path: p, Offset: o.Offset, Text: o.Text}, nil
	case RemoveText:
		p, err := fn(o.Path)
		if err != nil {
			return nil, err
		}
		return RemoveText{Path: p, Offset: o.Offset, Text: o.Text}, nil
	case SetSelection:
		sel, err := MapRange(o.Selection, fn)
		if err != nil {
			return nil, err
		}
		next, err := MapRange(o.NewSelection, fn)
		if err != nil {
			return nil, err
		}
		return SetSelection{Selection: sel, NewSelection: next}, nil
	}
	panic(fmt.Sprintf("ops: unhandled operation %T", op))
}

// MapRange passes both points of r through fn; nil stays nil.
func MapRange(r *tree.Range, fn func(tree.Path) (tree.Path, error)) (*tree.Range, error) {
	if r == nil {
		return nil, nil
	}
	a, err := fn(r.Anchor.Path)
	if err != nil {
		return nil, err
	}
	f, err := fn(r.Focus.Path)
	if err != nil {
		return nil, err
	}
	return &tree.Range{
		Anchor: tree.Point{Path: a, Offset: r.Anchor.Offset},
		Focus:  tree.Point{Path: f, Offset: r.Focus.Offset},
	}, nil
}

// Relativize rewrites op into the coordinates of the subtree rooted at base.
// Every path in op must lie strictly below base.
func Relativize(op Operation, base tree.Path) (Operation, error) {
	return MapPaths(op, func(p tree.Path) (tree.Path, error) { return p.RelativeTo(base) })
}

// Absolutize is the reverse of Relativize.
func Absolutize(op Operation, base tree.Path) Operation {
	out, _ := MapPaths(op, func(p tree.Path) (tree.Path, error) { return base.Concat(p), nil })
	return out
}
