/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"math"

	"cardsmith/internal/tree"
)

// MeasureFunc reports the laid out size of some content at a font size.
type MeasureFunc func(size float64) (width, height float64)

// Constraints bound the fit search.
type Constraints struct {
	MaxWidth  float64 // <= 0 means unbounded
	MaxHeight float64 // <= 0 means unbounded
	MinSize   float64
	MaxSize   float64
	Step      float64 // granularity of candidate sizes, 0.5 if zero
}

func (c Constraints) normalized() Constraints {
	if c.Step <= 0 {
		c.Step = 0.5
	}
	if c.MinSize <= 0 {
		c.MinSize = c.Step
	}
	if c.MaxSize < c.MinSize {
		c.MaxSize = c.MinSize
	}
	return c
}

func (c Constraints) fits(w, h float64) bool {
	return (c.MaxWidth <= 0 || w <= c.MaxWidth) && (c.MaxHeight <= 0 || h <= c.MaxHeight)
}

// ShrinkToFit returns the largest size on the grid MaxSize, MaxSize-Step, ...
// whose measurement fits, never going below MinSize. measure must grow
// monotonically with size; the search calls it O(log n) times.
func ShrinkToFit(measure MeasureFunc, c Constraints) float64 {
	c = c.normalized()
	fitsAt := func(s float64) bool { return c.fits(measure(s)) }
	if fitsAt(c.MaxSize) {
		return c.MaxSize
	}
	n := int(math.Floor((c.MaxSize - c.MinSize) / c.Step))
	size := func(k int) float64 {
		if k > n {
			return c.MinSize
		}
		return c.MaxSize - float64(k)*c.Step
	}
	// size(n+1) is the floor; it is returned whether or not it fits.
	lo, hi := 1, n+1
	for lo < hi {
		mid := (lo + hi) / 2
		if fitsAt(size(mid)) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return size(lo)
}

// FieldMeasurer measures the text of a card field laid out in a box of
// maxWidth pixels. Paragraphs stack; a horizontal rule adds half a line; images
// are laid out elsewhere and take no space here.
func FieldMeasurer(l Layouter, family string, field tree.Node, maxWidth float32) MeasureFunc {
	return func(size float64) (float64, float64) {
		var w, h float32
		var visit func(n tree.Node)
		visit = func(n tree.Node) {
			switch v := n.(type) {
			case *tree.Paragraph:
				box, err := l.Layout(spansOf(v, family, float32(size)), maxWidth)
				if err != nil {
					return
				}
				w = max(w, box.Width)
				h += box.Height
			case *tree.HorizontalRule:
				h += float32(size) / 2
			case *tree.Image:
			case tree.Element:
				for _, c := range v.Nodes() {
					visit(c)
				}
			}
		}
		visit(field)
		return float64(w), float64(h)
	}
}

// pipGlyph stands in for a symbol when measuring.
const pipGlyph = "O"

func spansOf(n tree.Node, family string, size float32) []Span {
	var out []Span
	var visit func(n tree.Node)
	visit = func(n tree.Node) {
		switch v := n.(type) {
		case *tree.Text:
			if v.Content != "" {
				out = append(out, Span{Text: v.Content, Font: FontSpec{Family: family, SizePt: size, Bold: v.Bold, Italic: v.Italic}})
			}
		case *tree.Icon:
			out = append(out, Span{Text: pipGlyph, Font: FontSpec{Family: family, SizePt: size}})
		case tree.Element:
			for _, c := range v.Nodes() {
				visit(c)
			}
		}
	}
	visit(n)
	return out
}
