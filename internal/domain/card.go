/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package domain describes what a card is made of: its named fields, their
// default content, and the identity of cards within a set.
package domain

import (
	"sync"

	"cardsmith/internal/tree"
)

// Field names of a card, in layout order.
const (
	FieldName     = "name"
	FieldCost     = "cost"
	FieldType     = "type"
	FieldCardText = "card_text"
	FieldPT       = "pt"
	FieldImage    = "image"
	FieldFrame    = "frame"
)

// Section names inside the card_text field.
const (
	SectionRules  = "rules"
	SectionFlavor = "flavor"
)

// FieldNames lists every field a new card gets.
var FieldNames = []string{FieldName, FieldCost, FieldType, FieldCardText, FieldPT, FieldImage, FieldFrame}

// IsKnownField reports whether name is one of FieldNames.
func IsKnownField(name string) bool {
	for _, n := range FieldNames {
		if n == name {
			return true
		}
	}
	return false
}

// IDAllocator hands out card IDs. It is safe for concurrent use so that a
// loader can observe IDs while a session allocates new ones.
type IDAllocator struct {
	mu   sync.Mutex
	last int64
}

// NewIDAllocator returns an allocator whose first ID is 1.
func NewIDAllocator() *IDAllocator { return &IDAllocator{} }

// Next returns a fresh ID.
func (a *IDAllocator) Next() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last++
	return a.last
}

// Observe makes sure later IDs are larger than id, typically one read from disk.
func (a *IDAllocator) Observe(id int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id > a.last {
		a.last = id
	}
}

func emptyParagraph() *tree.Paragraph {
	return &tree.Paragraph{Children: []tree.Node{tree.EmptyText()}}
}

// NewField returns the default content for the field called name.
func NewField(name string) *tree.Field {
	f := &tree.Field{Name: name}
	switch name {
	case FieldCardText:
		f.Children = []tree.Node{
			&tree.Section{Name: SectionRules, Children: []tree.Node{emptyParagraph()}},
			&tree.HorizontalRule{Children: []tree.Node{tree.EmptyText()}},
			&tree.Section{Name: SectionFlavor, Children: []tree.Node{emptyParagraph()}},
		}
	case FieldImage, FieldFrame:
		f.Children = []tree.Node{&tree.Image{Children: []tree.Node{tree.EmptyText()}}}
	default:
		f.Children = []tree.Node{emptyParagraph()}
	}
	return f
}

// NewCard builds a card with a fresh ID and every field in its default state.
func NewCard(ids *IDAllocator) *tree.Card {
	c := &tree.Card{ID: ids.Next()}
	for _, name := range FieldNames {
		c.Children = append(c.Children, NewField(name))
	}
	return c
}

// FindField locates the field called name below card. A card saved before the
// field existed simply reports ok=false.
func FindField(card tree.Node, name string) (*tree.Field, tree.Path, bool) {
	n, p, ok := tree.FirstMatching(card, tree.Pattern{"type": tree.KindField, "name": name})
	if !ok {
		return nil, nil, false
	}
	return n.(*tree.Field), p, true
}
