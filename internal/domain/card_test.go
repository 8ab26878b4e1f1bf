/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"cardsmith/internal/tree"
)

func TestNewCardHasEveryField(t *testing.T) {
	ids := NewIDAllocator()
	c := NewCard(ids)
	if c.ID != 1 {
		t.Fatalf("first id = %d", c.ID)
	}
	for i, name := range FieldNames {
		f, p, ok := FindField(c, name)
		if !ok {
			t.Fatalf("field %q missing", name)
		}
		if !p.Equal(tree.P(i)) || f.Name != name {
			t.Fatalf("field %q at %s", name, p)
		}
	}
	if NewCard(ids).ID != 2 {
		t.Fatalf("ids not increasing")
	}
}

func TestCardTextLayout(t *testing.T) {
	f := NewField(FieldCardText)
	if len(f.Children) != 3 {
		t.Fatalf("card_text children = %d", len(f.Children))
	}
	if s, ok := f.Children[0].(*tree.Section); !ok || s.Name != SectionRules {
		t.Fatalf("first child = %#v", f.Children[0])
	}
	if _, ok := f.Children[1].(*tree.HorizontalRule); !ok {
		t.Fatalf("second child = %#v", f.Children[1])
	}
	if _, _, ok := tree.FirstMatching(f, tree.Pattern{"type": tree.KindSection, "name": SectionFlavor}); !ok {
		t.Fatalf("flavor section missing")
	}
}

func TestFindFieldMissing(t *testing.T) {
	c := &tree.Card{ID: 4, Children: []tree.Node{NewField(FieldName)}}
	if _, _, ok := FindField(c, FieldPT); ok {
		t.Fatalf("expected pt to be missing")
	}
}

func TestIDAllocatorObserve(t *testing.T) {
	ids := NewIDAllocator()
	ids.Observe(41)
	ids.Observe(3)
	if got := ids.Next(); got != 42 {
		t.Fatalf("next after observe = %d", got)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids.Next()
		}()
	}
	wg.Wait()
	if got := ids.Next(); got != 51 {
		t.Fatalf("next after concurrent use = %d", got)
	}
}

func TestCardJSONRoundTrip(t *testing.T) {
	c := NewCard(NewIDAllocator())
	name, _, _ := FindField(c, FieldName)
	name.Children[0].(*tree.Paragraph).Children[0].(*tree.Text).Content = "Serra Angel"
	cost, _, _ := FindField(c, FieldCost)
	cost.Children[0].(*tree.Paragraph).Children = []tree.Node{
		&tree.Text{Content: "3"},
		&tree.ManaPip{Color: "W", Children: []tree.Node{tree.EmptyText(), &tree.Icon{Src: "blob:abc", Alt: "{W}"}, tree.EmptyText()}},
		tree.EmptyText(),
	}

	data, err := MarshalCard(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := ValidateCard(data); err != nil {
		t.Fatalf("marshalled card fails its own schema: %v", err)
	}
	ids := NewIDAllocator()
	got, err := UnmarshalCard(data, ids)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !tree.Equal(c, got) {
		t.Fatalf("round trip mismatch:\n%s\n%s", tree.Outline(c), tree.Outline(got))
	}
	if ids.Next() != c.ID+1 {
		t.Fatalf("allocator did not observe loaded id")
	}
}

func TestUnmarshalCardKeepsUnknownFieldsLast(t *testing.T) {
	data := []byte(`{"id": 3, "fields": {
		"zz_notes": {"type": "field", "name": "zz_notes", "children": []},
		"name": {"type": "field", "name": "name", "children": [{"type": "paragraph", "children": [{"text": "Bolt"}]}]},
		"artist": {"type": "field", "name": "artist", "children": []}
	}}`)
	c, err := UnmarshalCard(data, nil)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var names []string
	for _, n := range c.Children {
		names = append(names, n.(*tree.Field).Name)
	}
	if strings.Join(names, ",") != "name,artist,zz_notes" {
		t.Fatalf("field order = %v", names)
	}
}

func TestUnmarshalCardRejects(t *testing.T) {
	cases := map[string]string{
		"not json":        `{`,
		"missing id":      `{"fields": {}}`,
		"zero id":         `{"id": 0, "fields": {}}`,
		"unknown type":    `{"id": 1, "fields": {"name": {"type": "table", "name": "name", "children": []}}}`,
		"text as field":   `{"id": 1, "fields": {"name": {"text": "x"}}}`,
		"bad mark":        `{"id": 1, "fields": {"name": {"type": "field", "name": "name", "children": [{"type": "paragraph", "children": [{"text": "x", "bold": "yes"}]}]}}}`,
		"text in field":   `{"id": 1, "fields": {"name": {"type": "field", "name": "name", "children": [{"text": "x"}]}}}`,
		"name mismatch":   `{"id": 1, "fields": {"name": {"type": "field", "name": "cost", "children": []}}}`,
		"not a field":     `{"id": 1, "fields": {"name": {"type": "paragraph", "children": []}}}`,
		"stray attribute": `{"id": 1, "fields": {}, "extra": true}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := UnmarshalCard([]byte(data), nil)
			if !errors.Is(err, ErrInvalidCard) {
				t.Fatalf("expected ErrInvalidCard, got %v", err)
			}
			if c != nil {
				t.Fatalf("partial card returned")
			}
		})
	}
}

func TestMarshalCardRejectsNonFields(t *testing.T) {
	c := &tree.Card{ID: 1, Children: []tree.Node{&tree.Paragraph{}}}
	if _, err := MarshalCard(c); !errors.Is(err, ErrInvalidCard) {
		t.Fatalf("expected ErrInvalidCard, got %v", err)
	}
}
