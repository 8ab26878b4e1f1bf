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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Plain data shape shared with the persistence layer:
//
//	{"type": "paragraph", "children": [{"text": "Flying", "bold": true}]}
//
// Text leaves carry no "type" (or "type": "text").

var ErrMalformed = errors.New("malformed node data")

// FromData builds a node tree from decoded JSON-like data. Nothing is returned
// unless the whole tree is valid.
func FromData(v any) (Node, error) {
	return fromData(v, "$")
}

func fromData(v any, at string) (Node, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: want object, got %T", ErrMalformed, at, v)
	}
	typ, _ := m["type"].(string)
	if typ == "" || typ == string(KindText) {
		return textFromData(m, at)
	}
	n, err := newElement(Kind(typ))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, at, err)
	}
	for key := range n.Props() {
		if val, ok := m[key]; ok {
			if err := n.SetProp(key, val); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, at, err)
			}
		}
	}
	raw, ok := m["children"]
	if !ok || raw == nil {
		return n, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s.children: want array, got %T", ErrMalformed, at, raw)
	}
	kids := make([]Node, 0, len(list))
	for i, c := range list {
		child, err := fromData(c, fmt.Sprintf("%s.children[%d]", at, i))
		if err != nil {
			return nil, err
		}
		if _, ok := child.(*Text); ok && !HoldsText(n) {
			return nil, fmt.Errorf("%w: %s.children[%d]: text cannot sit directly in a %s", ErrMalformed, at, i, n.Kind())
		}
		kids = append(kids, child)
	}
	n.SetNodes(kids)
	return n, nil
}

// HoldsText reports whether text leaves may be children of n: paragraphs,
// inline nodes and void nodes, which keep an empty spacer text.
func HoldsText(n Node) bool {
	if _, ok := n.(*Paragraph); ok {
		return true
	}
	return IsInline(n) || IsVoid(n)
}

func textFromData(m map[string]any, at string) (Node, error) {
	t := &Text{}
	if raw, ok := m["text"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s.text: want string, got %T", ErrMalformed, at, raw)
		}
		t.Content = s
	} else {
		return nil, fmt.Errorf("%w: %s: neither a type nor text", ErrMalformed, at)
	}
	for _, key := range []string{"bold", "italic"} {
		if val, ok := m[key]; ok {
			if err := t.SetProp(key, val); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, at, err)
			}
		}
	}
	return t, nil
}

func newElement(k Kind) (Element, error) {
	switch k {
	case KindDocument:
		return &Document{}, nil
	case KindCard:
		return &Card{}, nil
	case KindField:
		return &Field{}, nil
	case KindSection:
		return &Section{}, nil
	case KindParagraph:
		return &Paragraph{}, nil
	case KindHorizontalRule:
		return &HorizontalRule{}, nil
	case KindImage:
		return &Image{}, nil
	case KindIcon:
		return &Icon{}, nil
	case KindManaPip:
		return &ManaPip{}, nil
	}
	return nil, fmt.Errorf("unknown node type %q", k)
}

// ToData converts n into the plain data shape accepted by FromData.
func ToData(n Node) map[string]any {
	if t, ok := n.(*Text); ok {
		m := map[string]any{"text": t.Content}
		if t.Bold {
			m["bold"] = true
		}
		if t.Italic {
			m["italic"] = true
		}
		return m
	}
	m := map[string]any{"type": string(n.Kind())}
	for k, v := range n.Props() {
		m[k] = v
	}
	kids := n.(Element).Nodes()
	list := make([]any, len(kids))
	for i, c := range kids {
		list[i] = ToData(c)
	}
	m["children"] = list
	return m
}

// MarshalNode encodes n as JSON.
func MarshalNode(n Node) ([]byte, error) {
	return json.Marshal(ToData(n))
}

// UnmarshalNode decodes JSON produced by MarshalNode.
func UnmarshalNode(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return FromData(v)
}

// Outline renders n as an indented, human readable listing.
func Outline(n Node) string {
	var b strings.Builder
	Walk(n, func(c Node, p Path) bool {
		b.WriteString(strings.Repeat("  ", len(p)))
		if t, ok := c.(*Text); ok {
			fmt.Fprintf(&b, "%q", t.Content)
			if t.Bold {
				b.WriteString(" bold")
			}
			if t.Italic {
				b.WriteString(" italic")
			}
			b.WriteByte('\n')
			return true
		}
		b.WriteString(string(c.Kind()))
		props := c.Props()
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, props[k])
		}
		b.WriteByte('\n')
		return true
	})
	return b.String()
}
