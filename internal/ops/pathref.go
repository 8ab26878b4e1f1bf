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

import "cardsmith/internal/tree"

// Ref is a stable handle to a live path in a RefTable.
type Ref uint64

type liveRef struct {
	path    tree.Path
	removed bool
}

// RefTable keeps paths valid across edits. The owner of the tree calls
// Transform after every applied operation; holders read through Path and
// must Release their handle when done.
type RefTable struct {
	seq  Ref
	live map[Ref]*liveRef
}

func NewRefTable() *RefTable {
	return &RefTable{live: make(map[Ref]*liveRef)}
}

// Track starts following p.
func (t *RefTable) Track(p tree.Path) Ref {
	t.seq++
	cp := p.Clone()
	if cp == nil {
		cp = tree.Path{}
	}
	t.live[t.seq] = &liveRef{path: cp}
	return t.seq
}

// Path returns the current path of r. ok is false for released handles and
// for nodes that have been removed.
func (t *RefTable) Path(r Ref) (tree.Path, bool) {
	lr, ok := t.live[r]
	if !ok || lr.removed {
		return nil, false
	}
	return lr.path.Clone(), true
}

// Release stops following r and returns its last path.
func (t *RefTable) Release(r Ref) (tree.Path, bool) {
	p, ok := t.Path(r)
	delete(t.live, r)
	return p, ok
}

// Len reports the number of live handles.
func (t *RefTable) Len() int { return len(t.live) }

// Transform moves every live path across op.
func (t *RefTable) Transform(op Operation) {
	if _, isSel := op.(SetSelection); isSel {
		return
	}
	for _, lr := range t.live {
		if lr.removed {
			continue
		}
		next, ok := TransformPath(lr.path, op)
		if !ok {
			lr.removed = true
			lr.path = nil
			continue
		}
		lr.path = next
	}
}
