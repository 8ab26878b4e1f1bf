/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package tree defines the card document model: a closed set of node variants,
// child-index paths, caret points and ranges, plus lookup and matching helpers.
// Nodes are plain Go values; mutation goes through package ops.
package tree

import (
	"fmt"
	"maps"
)

// Kind is the stable type tag of a node, as used in plain data and JSON.
type Kind string

const (
	KindDocument       Kind = "document"
	KindCard           Kind = "card"
	KindField          Kind = "field"
	KindSection        Kind = "section"
	KindParagraph      Kind = "paragraph"
	KindHorizontalRule Kind = "hr"
	KindImage          Kind = "image"
	KindIcon           Kind = "icon"
	KindManaPip        Kind = "mana"
	KindText           Kind = "text"
)

// Props holds the editable properties of a node. Children and text content are
// never part of it.
type Props map[string]any

// Node is implemented by every variant in this package and nothing else.
type Node interface {
	Kind() Kind
	// Props returns a fresh copy of the node's properties.
	Props() Props
	// SetProp sets a single property; nil resets it to the zero value.
	SetProp(key string, value any) error
	node()
}

// Element is a node that owns an ordered list of children.
type Element interface {
	Node
	Nodes() []Node
	SetNodes(children []Node)
}

type Document struct {
	Children []Node
}

type Card struct {
	ID       int64
	Children []Node
}

type Field struct {
	Name     string
	Children []Node
}

type Section struct {
	Name     string
	Children []Node
}

type Paragraph struct {
	Children []Node
}

// HorizontalRule is a void block; it carries a single empty text child.
type HorizontalRule struct {
	Children []Node
}

// Image is a void block showing Src.
type Image struct {
	Src      string
	Children []Node
}

// Icon is a void inline symbol.
type Icon struct {
	Src      string
	Alt      string
	Children []Node
}

// ManaPip is an inline cost symbol. See IsAtomic.
type ManaPip struct {
	Color    string
	Children []Node
}

type Text struct {
	Content string
	Bold    bool
	Italic  bool
}

func (*Document) node()       {}
func (*Card) node()           {}
func (*Field) node()          {}
func (*Section) node()        {}
func (*Paragraph) node()      {}
func (*HorizontalRule) node() {}
func (*Image) node()          {}
func (*Icon) node()           {}
func (*ManaPip) node()        {}
func (*Text) node()           {}

func (*Document) Kind() Kind       { return KindDocument }
func (*Card) Kind() Kind           { return KindCard }
func (*Field) Kind() Kind          { return KindField }
func (*Section) Kind() Kind        { return KindSection }
func (*Paragraph) Kind() Kind      { return KindParagraph }
func (*HorizontalRule) Kind() Kind { return KindHorizontalRule }
func (*Image) Kind() Kind          { return KindImage }
func (*Icon) Kind() Kind           { return KindIcon }
func (*ManaPip) Kind() Kind        { return KindManaPip }
func (*Text) Kind() Kind           { return KindText }

func (n *Document) Nodes() []Node       { return n.Children }
func (n *Card) Nodes() []Node           { return n.Children }
func (n *Field) Nodes() []Node          { return n.Children }
func (n *Section) Nodes() []Node        { return n.Children }
func (n *Paragraph) Nodes() []Node      { return n.Children }
func (n *HorizontalRule) Nodes() []Node { return n.Children }
func (n *Image) Nodes() []Node          { return n.Children }
func (n *Icon) Nodes() []Node           { return n.Children }
func (n *ManaPip) Nodes() []Node        { return n.Children }

func (n *Document) SetNodes(c []Node)       { n.Children = c }
func (n *Card) SetNodes(c []Node)           { n.Children = c }
func (n *Field) SetNodes(c []Node)          { n.Children = c }
func (n *Section) SetNodes(c []Node)        { n.Children = c }
func (n *Paragraph) SetNodes(c []Node)      { n.Children = c }
func (n *HorizontalRule) SetNodes(c []Node) { n.Children = c }
func (n *Image) SetNodes(c []Node)          { n.Children = c }
func (n *Icon) SetNodes(c []Node)           { n.Children = c }
func (n *ManaPip) SetNodes(c []Node)        { n.Children = c }

func (*Document) Props() Props       { return Props{} }
func (n *Card) Props() Props         { return Props{"id": n.ID} }
func (n *Field) Props() Props        { return Props{"name": n.Name} }
func (n *Section) Props() Props      { return Props{"name": n.Name} }
func (*Paragraph) Props() Props      { return Props{} }
func (*HorizontalRule) Props() Props { return Props{} }
func (n *Image) Props() Props        { return Props{"src": n.Src} }
func (n *Icon) Props() Props         { return Props{"src": n.Src, "alt": n.Alt} }
func (n *ManaPip) Props() Props      { return Props{"color": n.Color} }
func (n *Text) Props() Props         { return Props{"bold": n.Bold, "italic": n.Italic} }

func (n *Document) SetProp(key string, _ any) error {
	return unknownProp(n, key)
}

func (n *Card) SetProp(key string, value any) error {
	if key != "id" {
		return unknownProp(n, key)
	}
	id, err := asInt64(value)
	if err != nil {
		return fmt.Errorf("card id: %w", err)
	}
	n.ID = id
	return nil
}

func (n *Field) SetProp(key string, value any) error {
	if key != "name" {
		return unknownProp(n, key)
	}
	return setString(&n.Name, key, value)
}

func (n *Section) SetProp(key string, value any) error {
	if key != "name" {
		return unknownProp(n, key)
	}
	return setString(&n.Name, key, value)
}

func (n *Paragraph) SetProp(key string, _ any) error      { return unknownProp(n, key) }
func (n *HorizontalRule) SetProp(key string, _ any) error { return unknownProp(n, key) }

func (n *Image) SetProp(key string, value any) error {
	if key != "src" {
		return unknownProp(n, key)
	}
	return setString(&n.Src, key, value)
}

func (n *Icon) SetProp(key string, value any) error {
	switch key {
	case "src":
		return setString(&n.Src, key, value)
	case "alt":
		return setString(&n.Alt, key, value)
	}
	return unknownProp(n, key)
}

func (n *ManaPip) SetProp(key string, value any) error {
	if key != "color" {
		return unknownProp(n, key)
	}
	return setString(&n.Color, key, value)
}

func (n *Text) SetProp(key string, value any) error {
	switch key {
	case "bold":
		return setBool(&n.Bold, key, value)
	case "italic":
		return setBool(&n.Italic, key, value)
	}
	return unknownProp(n, key)
}

func unknownProp(n Node, key string) error {
	return fmt.Errorf("%s has no property %q", n.Kind(), key)
}

func setString(dst *string, key string, value any) error {
	if value == nil {
		*dst = ""
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("property %q wants a string, got %T", key, value)
	}
	*dst = s
	return nil
}

func setBool(dst *bool, key string, value any) error {
	if value == nil {
		*dst = false
		return nil
	}
	b, ok := value.(bool)
	if !ok {
		return fmt.Errorf("property %q wants a bool, got %T", key, value)
	}
	*dst = b
	return nil
}

func asInt64(value any) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("not an integer: %v", v)
		}
		return int64(v), nil
	case interface{ Int64() (int64, error) }: // json.Number
		return v.Int64()
	}
	return 0, fmt.Errorf("want an integer, got %T", value)
}

// Clone returns a deep copy of n.
func Clone(n Node) Node {
	switch v := n.(type) {
	case *Text:
		c := *v
		return &c
	case *Document:
		return &Document{Children: cloneAll(v.Children)}
	case *Card:
		return &Card{ID: v.ID, Children: cloneAll(v.Children)}
	case *Field:
		return &Field{Name: v.Name, Children: cloneAll(v.Children)}
	case *Section:
		return &Section{Name: v.Name, Children: cloneAll(v.Children)}
	case *Paragraph:
		return &Paragraph{Children: cloneAll(v.Children)}
	case *HorizontalRule:
		return &HorizontalRule{Children: cloneAll(v.Children)}
	case *Image:
		return &Image{Src: v.Src, Children: cloneAll(v.Children)}
	case *Icon:
		return &Icon{Src: v.Src, Alt: v.Alt, Children: cloneAll(v.Children)}
	case *ManaPip:
		return &ManaPip{Color: v.Color, Children: cloneAll(v.Children)}
	case nil:
		return nil
	}
	panic(fmt.Sprintf("tree: unhandled node type %T", n))
}

func cloneAll(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, c := range nodes {
		out[i] = Clone(c)
	}
	return out
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	if ta, ok := a.(*Text); ok {
		return *ta == *b.(*Text)
	}
	if !maps.Equal(a.Props(), b.Props()) {
		return false
	}
	ca, cb := a.(Element).Nodes(), b.(Element).Nodes()
	if len(ca) != len(cb) {
		return false
	}
	for i := range ca {
		if !Equal(ca[i], cb[i]) {
			return false
		}
	}
	return true
}

// IsInline reports whether n may sit beside text inside a paragraph.
func IsInline(n Node) bool {
	switch n.(type) {
	case *ManaPip, *Icon:
		return true
	}
	return false
}

// IsVoid reports whether n renders content but owns no editable text.
func IsVoid(n Node) bool {
	switch n.(type) {
	case *Image, *HorizontalRule, *Icon:
		return true
	}
	return false
}

// IsAtomic reports whether n is a mana pip in canonical icon shape:
// an empty text, one icon, an empty text.
func IsAtomic(n Node) bool {
	pip, ok := n.(*ManaPip)
	if !ok || len(pip.Children) != 3 {
		return false
	}
	if _, ok := pip.Children[1].(*Icon); !ok {
		return false
	}
	return isBlankText(pip.Children[0]) && isBlankText(pip.Children[2])
}

func isBlankText(n Node) bool {
	t, ok := n.(*Text)
	return ok && *t == Text{}
}

// EmptyText is the canonical spacer leaf.
func EmptyText() *Text { return &Text{} }

// Placeholder is the content of an editor that is bound to nothing.
func Placeholder() Element {
	return &Paragraph{Children: []Node{EmptyText()}}
}

// PlainText concatenates the content of all text leaves below n.
func PlainText(n Node) string {
	if t, ok := n.(*Text); ok {
		return t.Content
	}
	var out []byte
	Texts(n, func(t *Text, _ Path) bool {
		out = append(out, t.Content...)
		return true
	})
	return string(out)
}
