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
	"testing"

	"cardsmith/internal/ops"
	"cardsmith/internal/tree"
)

// fixture is a one-paragraph document driven through a Manager.
type fixture struct {
	root     *tree.Paragraph
	m        *Manager
	restored []Focus
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{root: &tree.Paragraph{Children: []tree.Node{&tree.Text{}}}}
	cfg.Apply = func(op ops.Operation) error { return ops.Apply(f.root, op) }
	cfg.Restore = func(fc Focus) { f.restored = append(f.restored, fc) }
	f.m = NewManager(cfg)
	return f
}

// do applies op and records it, the way the editor does.
func (f *fixture) do(t *testing.T, focus Focus, op ops.Operation) {
	t.Helper()
	if err := ops.Apply(f.root, op); err != nil {
		t.Fatalf("apply %s: %v", op, err)
	}
	f.m.Record(focus, op)
}

func (f *fixture) text() string { return tree.PlainText(f.root) }

func ins(off int, s string) ops.Operation {
	return ops.InsertText{Path: tree.P(0), Offset: off, Text: s}
}

func TestMergeAdjacentInserts(t *testing.T) {
	f := newFixture(t, Config{})
	f.do(t, Focus{}, ins(0, "a"))
	f.do(t, Focus{}, ins(1, "b"))
	if steps, _ := f.m.Stats(); steps != 1 {
		t.Fatalf("expected adjacent inserts to merge into 1 step, got %d", steps)
	}
}

func TestNonAdjacentInsertsSplit(t *testing.T) {
	f := newFixture(t, Config{})
	f.do(t, Focus{}, ins(0, "a"))
	f.do(t, Focus{}, ins(0, "pause"))
	f.do(t, Focus{}, ins(5, "b"))
	if steps, _ := f.m.Stats(); steps != 2 {
		t.Fatalf("expected 2 steps, got %d", steps)
	}
}

func TestMergeBackspaceAndDelete(t *testing.T) {
	f := newFixture(t, Config{})
	if err := ops.Apply(f.root, ins(0, "abcdef")); err != nil {
		t.Fatal(err)
	}
	// backspace twice at the end, then forward delete twice at the start
	f.do(t, Focus{}, ops.RemoveText{Path: tree.P(0), Offset: 5, Text: "f"})
	f.do(t, Focus{}, ops.RemoveText{Path: tree.P(0), Offset: 4, Text: "e"})
	f.m.SplitNext()
	f.do(t, Focus{}, ops.RemoveText{Path: tree.P(0), Offset: 0, Text: "a"})
	f.do(t, Focus{}, ops.RemoveText{Path: tree.P(0), Offset: 0, Text: "b"})
	if steps, _ := f.m.Stats(); steps != 2 {
		t.Fatalf("expected 2 steps, got %d", steps)
	}
	if got := f.text(); got != "cd" {
		t.Fatalf("text = %q", got)
	}
	if _, err := f.m.Undo(); err != nil {
		t.Fatal(err)
	}
	if got := f.text(); got != "abcd" {
		t.Fatalf("after undo text = %q", got)
	}
}

func TestInsertDoesNotMergeIntoDelete(t *testing.T) {
	f := newFixture(t, Config{})
	f.do(t, Focus{}, ins(0, "ab"))
	f.do(t, Focus{}, ops.RemoveText{Path: tree.P(0), Offset: 1, Text: "b"})
	if steps, _ := f.m.Stats(); steps != 2 {
		t.Fatalf("expected 2 steps, got %d", steps)
	}
}

func TestWithoutMergingAndDisabledMerging(t *testing.T) {
	f := newFixture(t, Config{})
	err := f.m.WithoutMerging(func() error {
		f.do(t, Focus{}, ins(0, "a"))
		f.do(t, Focus{}, ins(1, "b"))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if steps, _ := f.m.Stats(); steps != 2 {
		t.Fatalf("expected 2 steps without merging, got %d", steps)
	}

	g := newFixture(t, Config{DisableMerging: true})
	g.do(t, Focus{}, ins(0, "a"))
	g.do(t, Focus{}, ins(1, "b"))
	if steps, _ := g.m.Stats(); steps != 2 {
		t.Fatalf("expected 2 steps with merging disabled, got %d", steps)
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	f := newFixture(t, Config{})
	var snapshots []string
	for i, word := range []string{"Flying", " ", "Vigilance"} {
		f.m.SplitNext()
		sel := tree.Caret(tree.Point{Path: tree.P(0), Offset: len(f.text())})
		f.do(t, Focus{Target: word, Selection: sel}, ins(len(f.text()), word))
		snapshots = append(snapshots, f.text())
		if steps, _ := f.m.Stats(); steps != i+1 {
			t.Fatalf("expected %d steps, got %d", i+1, steps)
		}
	}
	for i := 2; i >= 0; i-- {
		ok, err := f.m.Undo()
		if err != nil || !ok {
			t.Fatalf("undo %d: ok=%v err=%v", i, ok, err)
		}
		last := f.restored[len(f.restored)-1]
		want := []string{"Flying", " ", "Vigilance"}[i]
		if last.Target != want {
			t.Fatalf("undo restored focus %q, want %q", last.Target, want)
		}
	}
	if ok, _ := f.m.Undo(); ok {
		t.Fatalf("undo at the start of history should report false")
	}
	if f.text() != "" {
		t.Fatalf("text after full undo = %q", f.text())
	}
	for i := 0; i < 3; i++ {
		if ok, err := f.m.Redo(); err != nil || !ok {
			t.Fatalf("redo %d: ok=%v err=%v", i, ok, err)
		}
		if f.text() != snapshots[i] {
			t.Fatalf("redo %d text = %q want %q", i, f.text(), snapshots[i])
		}
	}
	if ok, _ := f.m.Redo(); ok {
		t.Fatalf("redo at the end of history should report false")
	}
}

func TestUndoDoesNotRecord(t *testing.T) {
	f := newFixture(t, Config{})
	// an apply hook that records, as the live editor does
	f.m.cfg.Apply = func(op ops.Operation) error {
		if err := ops.Apply(f.root, op); err != nil {
			return err
		}
		f.m.Record(Focus{}, op)
		return nil
	}
	f.do(t, Focus{}, ins(0, "x"))
	if _, err := f.m.Undo(); err != nil {
		t.Fatal(err)
	}
	if steps, applied := f.m.Stats(); steps != 1 || applied != 0 {
		t.Fatalf("undo recorded itself: steps=%d applied=%d", steps, applied)
	}
}

func TestBatchCollapsesIntoPreviousStep(t *testing.T) {
	f := newFixture(t, Config{})
	f.do(t, Focus{}, ins(0, "{W"))
	f.m.SplitNext()
	f.do(t, Focus{}, ins(2, "}"))
	err := f.m.Batch(func() error {
		f.do(t, Focus{}, ops.RemoveText{Path: tree.P(0), Offset: 0, Text: "{W}"})
		f.do(t, Focus{}, ins(0, "W"))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if steps, _ := f.m.Stats(); steps != 2 {
		t.Fatalf("expected 2 steps, got %d", steps)
	}
	if _, err := f.m.Undo(); err != nil {
		t.Fatal(err)
	}
	if f.text() != "{W" {
		t.Fatalf("one undo should revert keystroke and substitution, text = %q", f.text())
	}
}

func TestBatchOnEmptyHistory(t *testing.T) {
	f := newFixture(t, Config{})
	_ = f.m.Batch(func() error {
		f.do(t, Focus{}, ins(0, "a"))
		f.do(t, Focus{}, ins(0, "b"))
		f.do(t, Focus{}, ins(0, "c"))
		return nil
	})
	if steps, _ := f.m.Stats(); steps != 1 {
		t.Fatalf("expected exactly one step, got %d", steps)
	}
}

func TestScopesRestoreOnErrorAndPanic(t *testing.T) {
	f := newFixture(t, Config{})
	boom := errors.New("boom")
	if err := f.m.WithoutWriting(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	func() {
		defer func() { _ = recover() }()
		_ = f.m.Batch(func() error { panic("x") })
	}()
	if !f.m.writing || f.m.forceMerge {
		t.Fatalf("scopes leaked: writing=%v forceMerge=%v", f.m.writing, f.m.forceMerge)
	}
}

func TestWithoutWriting(t *testing.T) {
	f := newFixture(t, Config{})
	_ = f.m.WithoutWriting(func() error {
		f.do(t, Focus{}, ins(0, "hydrated"))
		f.m.Write(Step{Ops: []ops.Operation{ins(0, "x")}})
		return nil
	})
	if steps, _ := f.m.Stats(); steps != 0 {
		t.Fatalf("expected nothing recorded, got %d", steps)
	}
}

func TestSelectionNotRecorded(t *testing.T) {
	f := newFixture(t, Config{})
	f.m.Record(Focus{}, ops.SetSelection{NewSelection: tree.Caret(tree.Point{Path: tree.P(0)})})
	if f.m.CanUndo() {
		t.Fatalf("selection change was recorded")
	}
}

func TestNewWriteDropsRedoTail(t *testing.T) {
	f := newFixture(t, Config{})
	f.do(t, Focus{}, ins(0, "a"))
	f.m.SplitNext()
	f.do(t, Focus{}, ins(1, "b"))
	if _, err := f.m.Undo(); err != nil {
		t.Fatal(err)
	}
	if !f.m.CanRedo() {
		t.Fatalf("expected a redo step")
	}
	f.m.SplitNext()
	f.do(t, Focus{}, ins(1, "c"))
	if f.m.CanRedo() {
		t.Fatalf("redo tail should be gone")
	}
	if steps, applied := f.m.Stats(); steps != 2 || applied != 2 {
		t.Fatalf("steps=%d applied=%d", steps, applied)
	}
}

func TestCapEvictsOldest(t *testing.T) {
	f := newFixture(t, Config{MaxSteps: 3})
	for i := 0; i < 10; i++ {
		f.m.SplitNext()
		f.do(t, Focus{}, ins(0, "x"))
	}
	if steps, applied := f.m.Stats(); steps != 3 || applied != 3 {
		t.Fatalf("expected cap of 3, got steps=%d applied=%d", steps, applied)
	}
	if NewManager(Config{}).cfg.MaxSteps != DefaultMaxSteps {
		t.Fatalf("default cap not applied")
	}
}

func image(src string) tree.Node {
	return &tree.Image{Src: src, Children: []tree.Node{&tree.Text{}}}
}

func TestEvictionReleasesRemovedImages(t *testing.T) {
	var released []string
	m := NewManager(Config{MaxSteps: 1, Release: func(src string) { released = append(released, src) }})
	m.Write(Step{Ops: []ops.Operation{
		ops.InsertNode{Path: tree.P(1), Node: image("blob:kept")},
		ops.RemoveNode{Path: tree.P(0), Node: image("blob:gone")},
	}})
	m.Write(Step{Ops: []ops.Operation{ins(0, "x")}})
	if len(released) != 1 || released[0] != "blob:gone" {
		t.Fatalf("released = %v", released)
	}
}

func TestDiscardedRedoReleasesInsertedImages(t *testing.T) {
	var released []string
	f := newFixture(t, Config{Release: func(src string) { released = append(released, src) }})
	f.do(t, Focus{}, ops.InsertNode{Path: tree.P(1), Node: image("blob:art")})
	if _, err := f.m.Undo(); err != nil {
		t.Fatal(err)
	}
	if len(released) != 0 {
		t.Fatalf("undo alone must not release: %v", released)
	}
	f.do(t, Focus{}, ins(0, "x"))
	if len(released) != 1 || released[0] != "blob:art" {
		t.Fatalf("released = %v", released)
	}
}

func TestUndoFailureReported(t *testing.T) {
	f := newFixture(t, Config{})
	f.do(t, Focus{}, ins(0, "abc"))
	// tamper with the document behind the history's back
	f.root.Children[0].(*tree.Text).Content = "zzz"
	ok, err := f.m.Undo()
	if ok || !errors.Is(err, ops.ErrInvalidOperation) {
		t.Fatalf("expected invalid operation, got ok=%v err=%v", ok, err)
	}
	if _, applied := f.m.Stats(); applied != 1 {
		t.Fatalf("failed undo moved the index")
	}
}

func TestGroupStartsOneNewStep(t *testing.T) {
	f := newFixture(t, Config{})
	f.do(t, Focus{}, ins(0, "ab"))
	err := f.m.Group(func() error {
		f.do(t, Focus{Target: "group"}, ins(2, "c"))
		f.do(t, Focus{}, ops.RemoveText{Path: tree.P(0), Offset: 0, Text: "a"})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if steps, _ := f.m.Stats(); steps != 2 {
		t.Fatalf("expected 2 steps, got %d", steps)
	}
	if _, err := f.m.Undo(); err != nil {
		t.Fatal(err)
	}
	if got := f.text(); got != "ab" {
		t.Fatalf("after undo text = %q", got)
	}
	if last := f.restored[len(f.restored)-1]; last.Target != "group" {
		t.Fatalf("restored focus %+v", last)
	}
}

func TestEmptyGroupDoesNotSplit(t *testing.T) {
	f := newFixture(t, Config{})
	f.do(t, Focus{}, ins(0, "a"))
	if err := f.m.Group(func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	f.do(t, Focus{}, ins(1, "b"))
	if steps, _ := f.m.Stats(); steps != 1 {
		t.Fatalf("expected typing to keep merging, got %d steps", steps)
	}
}
