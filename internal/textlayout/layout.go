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

// Text measurement and line breaking sit behind small interfaces so the fit
// search can run against a real font, the built-in bitmap face, or a stub.

import (
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// FontSpec describes a requested font.
type FontSpec struct {
	Family string // logical family name
	SizePt float32
	Bold   bool
	Italic bool
}

// Metrics are the resolved face's vertical metrics in pixels. Scale multiplies
// advances for faces that cannot be resized.
type Metrics struct {
	Ascent, Descent, LineGap float32
	Scale                    float32
}

func (m Metrics) lineHeight() float32 { return m.Ascent + m.Descent + m.LineGap }

// Span is a run of text with the same font/style.
type Span struct {
	Text string
	Font FontSpec
}

// Line is a single laid out line.
type Line struct {
	Spans  []Span
	Width  float32
	Height float32
}

// TextBox is the result of laying out text into a box width.
type TextBox struct {
	Lines  []Line
	Width  float32
	Height float32
}

// Provider maps FontSpec to a concrete font.Face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// Layouter performs line-breaking and measurement.
type Layouter interface {
	Layout(spans []Span, maxWidth float32) (TextBox, error)
}

// basicSize is the pixel height Face7x13 is drawn at.
const basicSize = 13

// BasicProvider uses x/image/basicfont Face7x13 scaled to the requested size.
// It is deterministic, which keeps tests independent of installed fonts.
type BasicProvider struct{}

func (BasicProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	m := f.Metrics()
	scale := float32(1)
	if spec.SizePt > 0 {
		scale = spec.SizePt / basicSize
	}
	return f, Metrics{
		Ascent:  float32(m.Ascent.Round()) * scale,
		Descent: float32(m.Descent.Round()) * scale,
		LineGap: float32(m.Height.Round()-m.Ascent.Round()-m.Descent.Round()) * scale,
		Scale:   scale,
	}
}

// WordWrapLayouter breaks on spaces and newlines; it does no shaping or
// hyphenation. A word wider than the box gets a line of its own.
type WordWrapLayouter struct{ Provider Provider }

func NewWordWrap(provider Provider) *WordWrapLayouter { return &WordWrapLayouter{Provider: provider} }

func (l *WordWrapLayouter) Layout(spans []Span, maxWidth float32) (TextBox, error) {
	if l.Provider == nil {
		l.Provider = BasicProvider{}
	}
	var box TextBox
	var cur Line
	var trail float32 // width of trailing spaces, not counted in Line.Width
	addLine := func() {
		cur.Width -= trail
		trail = 0
		box.Lines = append(box.Lines, cur)
		if cur.Width > box.Width {
			box.Width = cur.Width
		}
		box.Height += cur.Height
		cur = Line{}
	}
	for _, sp := range spans {
		if sp.Text == "" {
			continue
		}
		face, met := l.Provider.Resolve(sp.Font)
		drawer := &font.Drawer{Face: face}
		if h := met.lineHeight(); h > cur.Height {
			cur.Height = h
		}
		start := 0
		for i := 0; i <= len(sp.Text); i++ {
			if i < len(sp.Text) && sp.Text[i] != ' ' && sp.Text[i] != '\n' {
				continue
			}
			word := sp.Text[start:i]
			w := advance(drawer, met, word)
			if word != "" && cur.Width > 0 && maxWidth > 0 && cur.Width+w > maxWidth {
				addLine()
				cur.Height = met.lineHeight()
			}
			if word != "" {
				cur.Spans = append(cur.Spans, Span{Text: word, Font: sp.Font})
				cur.Width += w
				trail = 0
			}
			if i < len(sp.Text) {
				switch sp.Text[i] {
				case ' ':
					sw := advance(drawer, met, " ")
					cur.Spans = append(cur.Spans, Span{Text: " ", Font: sp.Font})
					cur.Width += sw
					trail += sw
				case '\n':
					addLine()
					cur.Height = met.lineHeight()
				}
			}
			start = i + 1
		}
	}
	if len(cur.Spans) > 0 || len(box.Lines) == 0 {
		if cur.Height == 0 {
			_, met := l.Provider.Resolve(FontSpec{})
			cur.Height = met.lineHeight()
		}
		addLine()
	}
	return box, nil
}

func advance(d *font.Drawer, met Metrics, s string) float32 {
	w := float32(d.MeasureString(s)) / 64 // fixed.Int26_6 to px
	if met.Scale > 0 {
		w *= met.Scale
	}
	return w
}

// Measure returns the width of spans on one line and the tallest line height.
func Measure(provider Provider, spans []Span) (w, h float32) {
	if provider == nil {
		provider = BasicProvider{}
	}
	for _, sp := range spans {
		face, met := provider.Resolve(sp.Font)
		w += advance(&font.Drawer{Face: face}, met, sp.Text)
		if lh := met.Ascent + met.Descent; lh > h {
			h = lh
		}
	}
	return w, h
}
