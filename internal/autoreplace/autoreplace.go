/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package autoreplace turns typed shorthand into typography and mana symbols
// right after the keystroke that completes it.
package autoreplace

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"cardsmith/internal/cursor"
	applog "cardsmith/internal/log"
	"cardsmith/internal/ops"
	"cardsmith/internal/tree"
)

// Replacement is what a rule puts in place of its match: either plain text or
// a single inline node.
type Replacement struct {
	Text string
	Node tree.Node
}

// Rule pairs a pattern with the replacement built from its submatches.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Replace func(submatches []string) Replacement
}

// IconFunc maps a mana symbol such as "W" or "T" to an icon source.
type IconFunc func(symbol string) string

// DefaultIcon points at the bundled symbol set.
func DefaultIcon(symbol string) string {
	return "symbols/" + strings.ToLower(symbol) + ".svg"
}

// Rules returns the built-in rules in the order they are tried.
func Rules(icon IconFunc) []Rule {
	if icon == nil {
		icon = DefaultIcon
	}
	return []Rule{
		{
			Name:    "dash",
			Pattern: regexp.MustCompile(`--| - `),
			Replace: func(m []string) Replacement {
				if m[0] == " - " {
					return Replacement{Text: " — "}
				}
				return Replacement{Text: "—"}
			},
		},
		{
			Name:    "colored",
			Pattern: regexp.MustCompile(`\{([WUBRGC])\}`),
			Replace: func(m []string) Replacement {
				return Replacement{Node: AtomicPip(m[1], icon(m[1]), m[0])}
			},
		},
		{
			Name:    "generic",
			Pattern: regexp.MustCompile(`\{(\d+)\}`),
			Replace: func(m []string) Replacement {
				return Replacement{Node: &tree.ManaPip{Color: "generic", Children: []tree.Node{&tree.Text{Content: m[1]}}}}
			},
		},
		{
			Name:    "tap",
			Pattern: regexp.MustCompile(`\{T\}`),
			Replace: func(m []string) Replacement {
				return Replacement{Node: AtomicPip("T", icon("T"), m[0])}
			},
		},
	}
}

// AtomicPip builds a mana pip in its canonical icon shape.
func AtomicPip(color, src, alt string) *tree.ManaPip {
	return &tree.ManaPip{Color: color, Children: []tree.Node{
		tree.EmptyText(),
		&tree.Icon{Src: src, Alt: alt},
		tree.EmptyText(),
	}}
}

// Target is the editor surface the engine drives.
type Target interface {
	Root() tree.Element
	Selection() *tree.Range
	Apply(op ops.Operation) error
	Select(r *tree.Range) error
}

// Batcher groups operations into one undo step.
type Batcher interface {
	Batch(fn func() error) error
}

type Engine struct {
	rules []Rule
	log   *slog.Logger
}

// New returns an engine with the given rules, or the built-in ones when none
// are passed.
func New(rules ...Rule) *Engine {
	if len(rules) == 0 {
		rules = Rules(nil)
	}
	return &Engine{rules: rules, log: applog.WithComponent("autoreplace")}
}

// Run checks the text under the caret and substitutes the first rule whose
// match ends the caret sits in. It reports whether a rule fired.
func (e *Engine) Run(ed Target, h Batcher) (bool, error) {
	sel := ed.Selection()
	if sel == nil || !sel.IsCollapsed() {
		return false, nil
	}
	caret := sel.Focus
	root := ed.Root()
	t, err := tree.Leaf(root, caret.Path)
	if err != nil || insidePip(root, caret.Path) {
		return false, nil
	}
	for _, r := range e.rules {
		for _, loc := range r.Pattern.FindAllStringSubmatchIndex(t.Content, -1) {
			start, end := loc[0], loc[1]
			if start >= caret.Offset || caret.Offset > end {
				continue
			}
			repl := r.Replace(submatches(t.Content, loc))
			e.log.Debug("replace", slog.String("rule", r.Name), slog.String("match", t.Content[start:end]))
			err := h.Batch(func() error { return substitute(ed, caret.Path, t, start, end, repl) })
			if err != nil {
				return true, fmt.Errorf("auto-replace %s: %w", r.Name, err)
			}
			return true, nil
		}
	}
	return false, nil
}

func submatches(s string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		if loc[2*i] >= 0 {
			out[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return out
}

func insidePip(root tree.Node, p tree.Path) bool {
	ancestors, err := tree.Ancestors(root, p)
	if err != nil {
		return true
	}
	for _, a := range ancestors {
		if _, ok := a.(*tree.ManaPip); ok {
			return true
		}
	}
	return false
}

// substitute replaces content[start:end] of the text at p. An inline node is
// placed by splitting the text: the tail moves into a new text with the same
// marks after the node, and the caret goes to its start. The caret is then
// nudged, which moves it into a generic pip that ends the line.
func substitute(ed Target, p tree.Path, t *tree.Text, start, end int, repl Replacement) error {
	content := t.Content
	if repl.Node == nil {
		if err := ed.Apply(ops.RemoveText{Path: p.Clone(), Offset: start, Text: content[start:end]}); err != nil {
			return err
		}
		if repl.Text != "" {
			if err := ed.Apply(ops.InsertText{Path: p.Clone(), Offset: start, Text: repl.Text}); err != nil {
				return err
			}
		}
		return place(ed, tree.Point{Path: p.Clone(), Offset: start + len(repl.Text)})
	}

	tail := &tree.Text{Content: content[end:], Bold: t.Bold, Italic: t.Italic}
	steps := []ops.Operation{
		ops.RemoveText{Path: p.Clone(), Offset: start, Text: content[start:]},
		ops.InsertNode{Path: p.Next(), Node: repl.Node},
		ops.InsertNode{Path: p.Next().Next(), Node: tail},
	}
	for _, op := range steps {
		if err := ed.Apply(op); err != nil {
			return err
		}
	}
	return place(ed, tree.Point{Path: p.Next().Next()})
}

func place(ed Target, pt tree.Point) error {
	if err := ed.Select(tree.Caret(pt)); err != nil {
		return err
	}
	return cursor.NudgeSelection(ed, cursor.Auto)
}
