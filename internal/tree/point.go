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

import "fmt"

// Point is a caret position: a text leaf and a byte offset into its content.
type Point struct {
	Path   Path
	Offset int
}

func (p Point) Equal(q Point) bool {
	return p.Offset == q.Offset && p.Path.Equal(q.Path)
}

// Compare orders two points in document order.
func (p Point) Compare(q Point) int {
	if c := p.Path.Compare(q.Path); c != 0 {
		return c
	}
	switch {
	case len(p.Path) != len(q.Path):
		// ancestor/descendant: shorter path sorts first
		if len(p.Path) < len(q.Path) {
			return -1
		}
		return 1
	case p.Offset < q.Offset:
		return -1
	case p.Offset > q.Offset:
		return 1
	}
	return 0
}

func (p Point) Clone() Point { return Point{Path: p.Path.Clone(), Offset: p.Offset} }

func (p Point) String() string { return fmt.Sprintf("%s:%d", p.Path, p.Offset) }

// Range is a selection. A nil *Range means nothing is selected.
type Range struct {
	Anchor Point
	Focus  Point
}

// Caret returns a collapsed range at p.
func Caret(p Point) *Range {
	return &Range{Anchor: p.Clone(), Focus: p.Clone()}
}

func (r *Range) Clone() *Range {
	if r == nil {
		return nil
	}
	return &Range{Anchor: r.Anchor.Clone(), Focus: r.Focus.Clone()}
}

func (r *Range) IsCollapsed() bool {
	return r != nil && r.Anchor.Equal(r.Focus)
}

// Edges returns the range endpoints in document order.
func (r *Range) Edges() (start, end Point) {
	if r.Anchor.Compare(r.Focus) <= 0 {
		return r.Anchor, r.Focus
	}
	return r.Focus, r.Anchor
}

func (r *Range) String() string {
	if r == nil {
		return "<none>"
	}
	return r.Anchor.String() + ".." + r.Focus.String()
}

// RangeEqual compares two possibly nil ranges.
func RangeEqual(a, b *Range) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Anchor.Equal(b.Anchor) && a.Focus.Equal(b.Focus)
}
