/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package tree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Path is a sequence of child indexes from the root. Paths go stale on edits;
// use ops.RefTable to keep one alive.
type Path []int

var ErrNotAncestor = errors.New("path is not an ancestor")

// P is a short constructor for literal paths.
func P(idx ...int) Path { return Path(idx) }

func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	return append(Path{}, p...)
}

func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Compare orders p and q over their common length; an ancestor compares equal
// to its descendants.
func (p Path) Compare(q Path) int {
	n := min(len(p), len(q))
	for i := 0; i < n; i++ {
		if p[i] < q[i] {
			return -1
		}
		if p[i] > q[i] {
			return 1
		}
	}
	return 0
}

// IsAncestor reports whether p is a strict ancestor of q.
func (p Path) IsAncestor(q Path) bool {
	return len(p) < len(q) && p.Compare(q) == 0
}

// IsDescendant reports whether p lies strictly below q.
func (p Path) IsDescendant(q Path) bool { return q.IsAncestor(p) }

func (p Path) IsSibling(q Path) bool {
	if len(p) == 0 || len(p) != len(q) {
		return false
	}
	return p.Parent().Equal(q.Parent()) && p[len(p)-1] != q[len(q)-1]
}

// EndsBefore reports whether p ends before q at p's depth, i.e. p is a
// preceding sibling of q or of one of q's ancestors.
func (p Path) EndsBefore(q Path) bool {
	i := len(p) - 1
	if i < 0 || len(q) <= i {
		return false
	}
	return p[:i].Equal(q[:i]) && p[i] < q[i]
}

// IsBefore reports whether p precedes q in document order and is not its ancestor.
func (p Path) IsBefore(q Path) bool { return p.Compare(q) < 0 }

// Parent returns the parent path; the root has none.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1].Clone()
}

// Next returns the path of the following sibling.
func (p Path) Next() Path {
	out := p.Clone()
	out[len(out)-1]++
	return out
}

// Previous returns the path of the preceding sibling, if any.
func (p Path) Previous() (Path, bool) {
	if len(p) == 0 || p[len(p)-1] == 0 {
		return nil, false
	}
	out := p.Clone()
	out[len(out)-1]--
	return out, true
}

// Append returns p extended by idx without aliasing p.
func (p Path) Append(idx ...int) Path {
	out := make(Path, 0, len(p)+len(idx))
	out = append(out, p...)
	return append(out, idx...)
}

func (p Path) Concat(q Path) Path { return p.Append(q...) }

// RelativeTo strips the ancestor prefix from p.
func (p Path) RelativeTo(ancestor Path) (Path, error) {
	if !ancestor.IsAncestor(p) {
		return nil, fmt.Errorf("%w: %s of %s", ErrNotAncestor, ancestor, p)
	}
	return p[len(ancestor):].Clone(), nil
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
