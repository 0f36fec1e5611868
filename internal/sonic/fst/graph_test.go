// Copyright 2026 The Sonic Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fst

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := Open(filepath.Join(t.TempDir(), "bucket.fst"), DefaultConfig)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return g
}

func TestContainsPendingPush(t *testing.T) {
	g := openTestGraph(t)
	if err := g.Push("hello"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	ok, err := g.Contains("hello")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !ok {
		t.Fatalf("expected pending-push word to be contained")
	}
}

func TestPopShadowsContains(t *testing.T) {
	g := openTestGraph(t)
	if err := g.Push("hello"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := g.Consolidate(); err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	g.Pop("hello")
	ok, err := g.Contains("hello")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if ok {
		t.Fatalf("expected popped word to be absent")
	}
}

func TestConsolidateFoldsIntoFST(t *testing.T) {
	g := openTestGraph(t)
	for _, w := range []string{"apple", "apricot", "banana"} {
		if err := g.Push(w); err != nil {
			t.Fatalf("Push(%q): %v", w, err)
		}
	}
	if err := g.Consolidate(); err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if g.PendingCount() != 0 {
		t.Fatalf("expected pending cleared after consolidation, got %d", g.PendingCount())
	}

	for _, w := range []string{"apple", "apricot", "banana"} {
		ok, err := g.Contains(w)
		if err != nil {
			t.Fatalf("Contains(%q): %v", w, err)
		}
		if !ok {
			t.Fatalf("expected %q to be in the consolidated FST", w)
		}
	}

	words, err := g.Prefix("ap", -1)
	if err != nil {
		t.Fatalf("Prefix: %v", err)
	}
	if len(words) != 2 || words[0] != "apple" || words[1] != "apricot" {
		t.Fatalf("got %v, want [apple apricot]", words)
	}
}

func TestConsolidatePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bucket.fst")

	g, err := Open(path, DefaultConfig)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := g.Push("hello"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := g.Consolidate(); err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, DefaultConfig)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	ok, err := reopened.Contains("hello")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !ok {
		t.Fatalf("expected consolidated word to survive reopen")
	}
}

func TestPushThenPopBeforeConsolidateCancelsOut(t *testing.T) {
	g := openTestGraph(t)
	if err := g.Push("hello"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	g.Pop("hello")
	if err := g.Consolidate(); err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	ok, err := g.Contains("hello")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if ok {
		t.Fatalf("expected push-then-pop to cancel out before consolidation")
	}
}

func TestFuzzyFindsCloseMatches(t *testing.T) {
	g := openTestGraph(t)
	for _, w := range []string{"hello", "help", "world"} {
		if err := g.Push(w); err != nil {
			t.Fatalf("Push(%q): %v", w, err)
		}
	}
	if err := g.Consolidate(); err != nil {
		t.Fatalf("Consolidate: %v", err)
	}

	matches, err := g.Fuzzy("helo", 2, -1)
	if err != nil {
		t.Fatalf("Fuzzy: %v", err)
	}
	found := map[string]bool{}
	for _, m := range matches {
		found[m] = true
	}
	if !found["hello"] || !found["help"] {
		t.Fatalf("got %v, want hello and help present", matches)
	}
	if found["world"] {
		t.Fatalf("got %v, world should be too far", matches)
	}
}

func TestConsolidateKeepsPendingWriteThatArrivesDuringRebuild(t *testing.T) {
	g := openTestGraph(t)
	for _, w := range []string{"apple", "apricot", "avocado"} {
		if err := g.Push(w); err != nil {
			t.Fatalf("Push(%q): %v", w, err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(time.Millisecond)
		_ = g.Push("banana")
	}()
	if err := g.Consolidate(); err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	<-done

	ok, err := g.Contains("banana")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !ok {
		t.Fatalf("expected a push arriving during consolidation to survive, not be wiped by the rebuild")
	}
}

func TestDueForConsolidationGatesOnConsolidateAfter(t *testing.T) {
	cfg := DefaultConfig
	cfg.ConsolidateAfter = time.Minute
	g, err := Open(filepath.Join(t.TempDir(), "bucket.fst"), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	now := time.Now()
	if g.DueForConsolidation(now) {
		t.Fatalf("expected a graph with no pending writes not to be due")
	}

	if err := g.Push("apple"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if !g.DueForConsolidation(now) {
		t.Fatalf("expected a never-consolidated graph with pending writes to be due immediately")
	}
	if err := g.Consolidate(); err != nil {
		t.Fatalf("Consolidate: %v", err)
	}

	if err := g.Push("banana"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if g.DueForConsolidation(now.Add(30 * time.Second)) {
		t.Fatalf("expected graph not to be due before ConsolidateAfter elapses")
	}
	if !g.DueForConsolidation(now.Add(2 * time.Minute)) {
		t.Fatalf("expected graph to be due once ConsolidateAfter elapses")
	}
}

func TestEmptyGraphOperationsAreSafe(t *testing.T) {
	g := openTestGraph(t)

	ok, err := g.Contains("anything")
	if err != nil || ok {
		t.Fatalf("Contains on empty graph: ok=%v err=%v", ok, err)
	}
	words, err := g.Prefix("a", -1)
	if err != nil || len(words) != 0 {
		t.Fatalf("Prefix on empty graph: %v, err=%v", words, err)
	}
	if err := g.Consolidate(); err != nil {
		t.Fatalf("Consolidate on empty graph: %v", err)
	}
}
