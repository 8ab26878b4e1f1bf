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
)

var ErrOutOfRange = errors.New("path out of range")

// Get resolves p below root.
func Get(root Node, p Path) (Node, error) {
	n := root
	for depth, idx := range p {
		el, ok := n.(Element)
		if !ok {
			return nil, fmt.Errorf("%w: %s stops at %s (depth %d)", ErrOutOfRange, p, n.Kind(), depth)
		}
		kids := el.Nodes()
		if idx < 0 || idx >= len(kids) {
			return nil, fmt.Errorf("%w: %s (index %d of %d at depth %d)", ErrOutOfRange, p, idx, len(kids), depth)
		}
		n = kids[idx]
	}
	return n, nil
}

// GetElement resolves p and requires an element.
func GetElement(root Node, p Path) (Element, error) {
	n, err := Get(root, p)
	if err != nil {
		return nil, err
	}
	el, ok := n.(Element)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s, not an element", ErrOutOfRange, p, n.Kind())
	}
	return el, nil
}

// Leaf resolves p and requires a text node.
func Leaf(root Node, p Path) (*Text, error) {
	n, err := Get(root, p)
	if err != nil {
		return nil, err
	}
	t, ok := n.(*Text)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s, not text", ErrOutOfRange, p, n.Kind())
	}
	return t, nil
}

// Has reports whether p resolves below root.
func Has(root Node, p Path) bool {
	_, err := Get(root, p)
	return err == nil
}

// Walk visits root and its descendants in pre-order. Returning false from fn
// stops the walk.
func Walk(root Node, fn func(n Node, p Path) bool) {
	walk(root, nil, fn)
}

func walk(n Node, p Path, fn func(Node, Path) bool) bool {
	if !fn(n, p) {
		return false
	}
	el, ok := n.(Element)
	if !ok {
		return true
	}
	for i, c := range el.Nodes() {
		if !walk(c, p.Append(i), fn) {
			return false
		}
	}
	return true
}

// Texts visits the text leaves below root in document order.
func Texts(root Node, fn func(t *Text, p Path) bool) {
	Walk(root, func(n Node, p Path) bool {
		if t, ok := n.(*Text); ok {
			return fn(t, p)
		}
		return true
	})
}

// Ancestors returns the nodes from root down to (excluding) the node at p.
func Ancestors(root Node, p Path) ([]Node, error) {
	out := make([]Node, 0, len(p))
	n := root
	for i := range p {
		out = append(out, n)
		next, err := Get(n, p[i:i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrOutOfRange, p)
		}
		n = next
	}
	return out, nil
}

// Start returns the first caret position inside the node at p.
func Start(root Node, p Path) (Point, bool) {
	n, err := Get(root, p)
	if err != nil {
		return Point{}, false
	}
	var found Point
	ok := false
	Texts(n, func(_ *Text, rel Path) bool {
		found = Point{Path: p.Concat(rel)}
		ok = true
		return false
	})
	return found, ok
}

// End returns the last caret position inside the node at p.
func End(root Node, p Path) (Point, bool) {
	n, err := Get(root, p)
	if err != nil {
		return Point{}, false
	}
	var found Point
	ok := false
	Texts(n, func(t *Text, rel Path) bool {
		found = Point{Path: p.Concat(rel), Offset: len(t.Content)}
		ok = true
		return true
	})
	return found, ok
}
