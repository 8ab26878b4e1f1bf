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
	"fmt"

	"cardsmith/internal/tree"
)

// TransformPath returns where the node at p lives after op has been applied.
// ok is false when op removed the node or one of its ancestors.
func TransformPath(p tree.Path, op Operation) (tree.Path, bool) {
	if p == nil {
		return nil, false
	}
	out := p.Clone()
	switch o := op.(type) {
	case InsertNode:
		at := o.Path
		if len(at) == 0 {
			break
		}
		if at.Equal(out) || at.EndsBefore(out) || at.IsAncestor(out) {
			out[len(at)-1]++
		}
	case RemoveNode:
		at := o.Path
		if at.Equal(out) || at.IsAncestor(out) {
			return nil, false
		}
		if len(at) == 0 {
			break
		}
		if at.EndsBefore(out) {
			out[len(at)-1]--
		}
	case MoveNode:
		return transformMove(out, o), true
	case SetNodeProperties, InsertText, RemoveText, SetSelection:
	default:
		panic(fmt.Sprintf("ops: unhandled operation %T", op))
	}
	return out, true
}

func transformMove(p tree.Path, o MoveNode) tree.Path {
	from, to := o.Path, o.NewPath
	if from.Equal(to) {
		return p
	}
	switch {
	case from.IsAncestor(p) || from.Equal(p):
		dst := to.Clone()
		if from.EndsBefore(to) && len(from) < len(to) {
			dst[len(from)-1]--
		}
		return dst.Concat(p[len(from):])
	case from.IsSibling(to) && (to.IsAncestor(p) || to.Equal(p)):
		if from.EndsBefore(p) {
			p[len(from)-1]--
		} else {
			p[len(from)-1]++
		}
	case to.EndsBefore(p) || to.Equal(p) || to.IsAncestor(p):
		if from.EndsBefore(p) {
			p[len(from)-1]--
		}
		p[len(to)-1]++
	case from.EndsBefore(p):
		if to.Equal(p) {
			p[len(to)-1]++
		}
		p[len(from)-1]--
	}
	return p
}

// TransformPoint carries a caret position across op. Text inserted exactly at
// the point pushes it forward.
func TransformPoint(pt tree.Point, op Operation) (tree.Point, bool) {
	out := pt.Clone()
	switch o := op.(type) {
	case InsertText:
		if o.Path.Equal(out.Path) && o.Offset <= out.Offset {
			out.Offset += len(o.Text)
		}
		return out, true
	case RemoveText:
		if o.Path.Equal(out.Path) && o.Offset <= out.Offset {
			out.Offset -= min(out.Offset-o.Offset, len(o.Text))
		}
		return out, true
	}
	p, ok := TransformPath(out.Path, op)
	if !ok {
		return tree.Point{}, false
	}
	out.Path = p
	return out, true
}

// TransformRange transforms both points; a nil result means one of them was
// removed.
func TransformRange(r *tree.Range, op Operation) *tree.Range {
	if r == nil {
		return nil
	}
	a, ok := TransformPoint(r.Anchor, op)
	if !ok {
		return nil
	}
	f, ok := TransformPoint(r.Focus, op)
	if !ok {
		return nil
	}
	return &tree.Range{Anchor: a, Focus: f}
}
