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
	"testing"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

func TestWordWrap_Naive(t *testing.T) {
	l := NewWordWrap(BasicProvider{})
	box, err := l.Layout([]Span{{Text: "Hello world from Go", Font: FontSpec{}}}, 50)
	if err != nil {
		t.Fatalf("layout error: %v", err)
	}
	if len(box.Lines) < 2 {
		t.Fatalf("expected wrapping into multiple lines, got %d", len(box.Lines))
	}
	if box.Width <= 0 || box.Height <= 0 {
		t.Fatalf("expected positive box size: %+v", box)
	}
}

func TestWordWrap_Newline(t *testing.T) {
	l := NewWordWrap(nil)
	box, _ := l.Layout([]Span{{Text: "a\nb"}}, 0)
	if len(box.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(box.Lines))
	}
}

func TestMeasure_Deterministic(t *testing.T) {
	w1, h1 := Measure(BasicProvider{}, []Span{{Text: "ABC"}})
	w2, h2 := Measure(BasicProvider{}, []Span{{Text: "A"}, {Text: "BC"}})
	if w1 != w2 || h1 != h2 {
		t.Fatalf("expected same measure, got w1=%v h1=%v vs w2=%v h2=%v", w1, h1, w2, h2)
	}
}

func TestBasicProviderScales(t *testing.T) {
	w13, h13 := Measure(BasicProvider{}, []Span{{Text: "ABC", Font: FontSpec{SizePt: 13}}})
	w26, h26 := Measure(BasicProvider{}, []Span{{Text: "ABC", Font: FontSpec{SizePt: 26}}})
	if w26 != 2*w13 || h26 != 2*h13 {
		t.Fatalf("expected double size, got %vx%v vs %vx%v", w26, h26, w13, h13)
	}
}

func TestCardFontsPickFacesByStyle(t *testing.T) {
	fonts := NewCardFonts("Go")
	if err := fonts.Add(Regular, goregular.TTF); err != nil {
		t.Fatalf("add regular: %v", err)
	}
	if err := fonts.Add(Bold, gobold.TTF); err != nil {
		t.Fatalf("add bold: %v", err)
	}
	if err := fonts.Add(Italic, []byte("not a font")); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := fonts.Add(Style(7), goregular.TTF); err == nil {
		t.Fatalf("expected unknown style error")
	}
	width := func(spec FontSpec) float32 {
		spec.Family, spec.SizePt = "Go", 12
		w, _ := Measure(fonts, []Span{{Text: "Flying", Font: spec}})
		return w
	}
	reg, bold := width(FontSpec{}), width(FontSpec{Bold: true})
	if reg <= 0 || bold <= reg {
		t.Fatalf("bold should be wider: regular=%v bold=%v", reg, bold)
	}
	// no italic face is loaded
	if it := width(FontSpec{Italic: true}); it != reg {
		t.Fatalf("italic = %v, want regular %v", it, reg)
	}
	if bi := width(FontSpec{Bold: true, Italic: true}); bi != bold {
		t.Fatalf("bold italic = %v, want bold %v", bi, bold)
	}

	a, _ := fonts.Resolve(FontSpec{Family: "Go", SizePt: 9})
	b, _ := fonts.Resolve(FontSpec{Family: "Go", SizePt: 9})
	if a != b {
		t.Fatalf("face for the same size was not reused")
	}

	other, _ := Measure(fonts, []Span{{Text: "Flying", Font: FontSpec{Family: "Missing", SizePt: 13}}})
	basic, _ := Measure(BasicProvider{}, []Span{{Text: "Flying", Font: FontSpec{SizePt: 13}}})
	if other != basic {
		t.Fatalf("other family = %v, want basic %v", other, basic)
	}
	empty, _ := Measure(NewCardFonts("Go"), []Span{{Text: "Flying", Font: FontSpec{Family: "Go", SizePt: 13}}})
	if empty != basic {
		t.Fatalf("no faces = %v, want basic %v", empty, basic)
	}
}
