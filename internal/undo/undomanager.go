/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"errors"
	"fmt"

	"cardsmith/internal/ops"
	"cardsmith/internal/tree"
)

// DefaultMaxSteps is the retention bound of the history ring.
const DefaultMaxSteps = 100

// Focus is what was focused and selected right before a step, so undo can
// put the user back where the edit happened.
type Focus struct {
	// Target names the focused view; empty means the hub itself.
	Target    string
	Selection *tree.Range
}

// Step is one unit of undo: the operations in the order they were applied.
type Step struct {
	Ops         []ops.Operation
	FocusBefore Focus
}

// Config wires the manager to the editor it records.
type Config struct {
	// MaxSteps caps the history; the oldest step is retired beyond it.
	MaxSteps int
	// Apply runs an operation against the document (required for Undo/Redo).
	Apply func(op ops.Operation) error
	// Restore puts focus and selection back after Undo/Redo.
	Restore func(f Focus)
	// Release is called with the source of every image a retired step held
	// exclusively.
	Release func(src string)
	// DisableMerging turns off the typing heuristic.
	DisableMerging bool
}

// Manager is a step-based undo/redo history with merge heuristics. All state
// changes happen on the caller's goroutine; it is not safe for concurrent use.
type Manager struct {
	cfg   Config
	steps []Step
	// index is the number of applied steps; steps[index:] is the redo tail.
	index int

	writing    bool
	merging    bool
	forceMerge bool
	splitNext  bool
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	return &Manager{cfg: cfg, writing: true, merging: !cfg.DisableMerging}
}

// Write appends a step, dropping any redo tail. No-op while writing is off.
func (m *Manager) Write(s Step) {
	if !m.writing {
		return
	}
	m.retireTail()
	m.steps = append(m.steps, s)
	m.index++
	for len(m.steps) > m.cfg.MaxSteps {
		m.retire(m.steps[0], true)
		m.steps[0] = Step{}
		m.steps = m.steps[1:]
		m.index--
	}
}

// Record adds op to the history, either as a new step or merged into the
// previous one. Selection changes are never recorded.
func (m *Manager) Record(focus Focus, op ops.Operation) {
	if !m.writing {
		return
	}
	if _, ok := op.(ops.SetSelection); ok {
		return
	}
	merge := false
	switch {
	case m.index == 0:
	case m.splitNext:
	case m.forceMerge:
		merge = true
	case m.merging:
		merge = shouldMerge(m.steps[m.index-1], op)
	}
	m.splitNext = false
	if !merge {
		m.Write(Step{Ops: []ops.Operation{op}, FocusBefore: focus})
		return
	}
	m.retireTail()
	prev := &m.steps[m.index-1]
	prev.Ops = append(prev.Ops, op)
}

// shouldMerge implements the typing heuristic: consecutive inserts that
// continue where the last one ended, and deletes that continue backwards or
// forwards from the last one, in the same text leaf.
func shouldMerge(prev Step, op ops.Operation) bool {
	if len(prev.Ops) == 0 {
		return false
	}
	last := prev.Ops[len(prev.Ops)-1]
	switch o := op.(type) {
	case ops.InsertText:
		p, ok := last.(ops.InsertText)
		return ok && p.Path.Equal(o.Path) && o.Offset == p.Offset+len(p.Text)
	case ops.RemoveText:
		p, ok := last.(ops.RemoveText)
		if !ok || !p.Path.Equal(o.Path) {
			return false
		}
		return o.Offset+len(o.Text) == p.Offset || o.Offset == p.Offset
	}
	return false
}

// Undo reverts the latest applied step. It reports false at the start of history.
func (m *Manager) Undo() (bool, error) {
	if m.index == 0 {
		return false, nil
	}
	step := m.steps[m.index-1]
	err := m.WithoutWriting(func() error {
		for i := len(step.Ops) - 1; i >= 0; i-- {
			if err := m.apply(step.Ops[i].Inverse()); err != nil {
				return err
			}
		}
		m.index--
		m.restore(step.FocusBefore)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("undo: %w", err)
	}
	return true, nil
}

// Redo re-applies the next undone step. It reports false at the end of history.
func (m *Manager) Redo() (bool, error) {
	if m.index == len(m.steps) {
		return false, nil
	}
	step := m.steps[m.index]
	err := m.WithoutWriting(func() error {
		for _, op := range step.Ops {
			if err := m.apply(op); err != nil {
				return err
			}
		}
		m.index++
		m.restore(step.FocusBefore)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redo: %w", err)
	}
	return true, nil
}

var errNoApply = errors.New("history has no apply function")

func (m *Manager) apply(op ops.Operation) error {
	if m.cfg.Apply == nil {
		return errNoApply
	}
	return m.cfg.Apply(op)
}

func (m *Manager) restore(f Focus) {
	if m.cfg.Restore != nil {
		m.cfg.Restore(f)
	}
}

// Batch runs fn with forced merging: everything recorded inside joins the step
// before the batch, or a single new step when the history is empty.
func (m *Manager) Batch(fn func() error) error {
	return scoped(&m.forceMerge, true, fn)
}

// Group records everything fn applies as one new step.
func (m *Manager) Group(fn func() error) error {
	prev := m.splitNext
	m.splitNext = true
	err := m.Batch(fn)
	if m.splitNext {
		// nothing was recorded
		m.splitNext = prev
	}
	return err
}

// WithoutWriting runs fn with recording switched off.
func (m *Manager) WithoutWriting(fn func() error) error {
	return scoped(&m.writing, false, fn)
}

// WithoutMerging runs fn with the typing heuristic switched off, so every
// recorded operation starts its own step.
func (m *Manager) WithoutMerging(fn func() error) error {
	return scoped(&m.merging, false, fn)
}

// SplitNext makes the next recorded operation start a new step even if it
// would otherwise merge, inside a Batch included.
func (m *Manager) SplitNext() { m.splitNext = true }

// scoped sets *flag to v for the duration of fn and restores it on every exit
// path, panics included.
func scoped(flag *bool, v bool, fn func() error) error {
	prev := *flag
	*flag = v
	defer func() { *flag = prev }()
	return fn()
}

func (m *Manager) CanUndo() bool { return m.index > 0 }
func (m *Manager) CanRedo() bool { return m.index < len(m.steps) }

// Stats returns the number of stored steps and how many of them are applied.
func (m *Manager) Stats() (steps int, applied int) { return len(m.steps), m.index }

// Steps returns a copy of the stored steps for diagnostics.
func (m *Manager) Steps() []Step { return append([]Step(nil), m.steps...) }

// Clear drops the whole history, retiring every step.
func (m *Manager) Clear() {
	for i, s := range m.steps {
		m.retire(s, i < m.index)
	}
	m.steps = nil
	m.index = 0
}

func (m *Manager) retireTail() {
	if m.index == len(m.steps) {
		return
	}
	for _, s := range m.steps[m.index:] {
		m.retire(s, false)
	}
	m.steps = m.steps[:m.index]
}

// retire releases the images only s still holds. An applied step holds what
// it removed; an undone step holds what it inserted.
func (m *Manager) retire(s Step, applied bool) {
	if m.cfg.Release == nil {
		return
	}
	for _, op := range s.Ops {
		switch o := op.(type) {
		case ops.RemoveNode:
			if applied {
				m.releaseImages(o.Node)
			}
		case ops.InsertNode:
			if !applied {
				m.releaseImages(o.Node)
			}
		case ops.SetNodeProperties:
			held := o.NewProperties
			if applied {
				held = o.Properties
			}
			if src, ok := held["src"].(string); ok && src != "" {
				m.cfg.Release(src)
			}
		}
	}
}

func (m *Manager) releaseImages(n tree.Node) {
	if n == nil {
		return
	}
	tree.Walk(n, func(c tree.Node, _ tree.Path) bool {
		if img, ok := c.(*tree.Image); ok && img.Src != "" {
			m.cfg.Release(img.Src)
		}
		return true
	})
}
