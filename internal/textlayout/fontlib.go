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
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
)

// Style selects a face by the marks of a text run.
type Style int

const (
	Regular    Style = 0
	Bold       Style = 1
	Italic     Style = 2
	BoldItalic       = Bold | Italic
)

func (s Style) String() string {
	switch s {
	case Regular:
		return "regular"
	case Bold:
		return "bold"
	case Italic:
		return "italic"
	case BoldItalic:
		return "bold italic"
	}
	return fmt.Sprintf("style(%d)", int(s))
}

func styleOf(spec FontSpec) Style {
	s := Regular
	if spec.Bold {
		s |= Bold
	}
	if spec.Italic {
		s |= Italic
	}
	return s
}

// CardFonts sets one family in parsed OpenType faces. A style without a face
// of its own uses the nearest loaded one, ending at regular. Other families,
// and every run while no regular face is loaded, go to BasicProvider.
type CardFonts struct {
	Family string
	DPI    float64 // 72 if zero

	faces [BoldItalic + 1]*opentype.Font
	cache map[faceKey]resolved
}

type faceKey struct {
	style Style
	size  float32
}

type resolved struct {
	face    font.Face
	metrics Metrics
}

func NewCardFonts(family string) *CardFonts { return &CardFonts{Family: family} }

// Add parses an OpenType or TrueType font as the face for style.
func (c *CardFonts) Add(style Style, data []byte) error {
	if style < Regular || style > BoldItalic {
		return fmt.Errorf("unknown font style %d", int(style))
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse %s font: %w", style, err)
	}
	c.faces[style] = f
	c.cache = nil
	return nil
}

// LoadFile reads a font file and adds it for style.
func (c *CardFonts) LoadFile(style Style, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return c.Add(style, data)
}

func (c *CardFonts) face(s Style) *opentype.Font {
	for _, try := range []Style{s, s &^ Italic, s &^ Bold, Regular} {
		if f := c.faces[try]; f != nil {
			return f
		}
	}
	return nil
}

// Resolve returns the face for the run's style at its size. Faces are cached
// per style and size.
func (c *CardFonts) Resolve(spec FontSpec) (font.Face, Metrics) {
	if spec.SizePt <= 0 {
		spec.SizePt = 12
	}
	if spec.Family != c.Family || c.faces[Regular] == nil {
		return BasicProvider{}.Resolve(spec)
	}
	key := faceKey{style: styleOf(spec), size: spec.SizePt}
	if r, ok := c.cache[key]; ok {
		return r.face, r.metrics
	}
	dpi := c.DPI
	if dpi <= 0 {
		dpi = 72
	}
	face, err := opentype.NewFace(c.face(key.style), &opentype.FaceOptions{Size: float64(spec.SizePt), DPI: dpi, Hinting: font.HintingFull})
	if err != nil {
		return BasicProvider{}.Resolve(spec)
	}
	m := face.Metrics()
	r := resolved{face: face, metrics: Metrics{
		Ascent:  float32(m.Ascent.Round()),
		Descent: float32(m.Descent.Round()),
		LineGap: float32(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
		Scale:   1,
	}}
	if c.cache == nil {
		c.cache = make(map[faceKey]resolved)
	}
	c.cache[key] = r
	return r.face, r.metrics
}
