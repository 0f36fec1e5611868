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
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/vellum"

	"sonic/internal/sonic/sonicerr"
)

// loadedFST is the immutable, swappable snapshot a Graph serves reads
// from. raw is kept alongside fst because vellum.Load borrows it rather
// than copying it.
type loadedFST struct {
	fst *vellum.FST
	raw []byte
}

// Graph is one bucket's word graph: an immutable FST plus a small
// pending overlay absorbing PUSH/POP between consolidations (spec §4.E).
type Graph struct {
	path string
	cfg  Config

	current atomic.Pointer[loadedFST] // nil until the first consolidation

	mu               sync.Mutex
	pendingPush      map[string]struct{}
	pendingPop       map[string]struct{}
	lastConsolidated time.Time
}

// Open loads path's existing FST file, if any, into a fresh Graph. A
// missing file is not an error: the graph starts empty and is built by
// the first consolidation.
func Open(path string, cfg Config) (*Graph, error) {
	g := &Graph{
		path:        path,
		cfg:         cfg,
		pendingPush: make(map[string]struct{}),
		pendingPop:  make(map[string]struct{}),
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return g, nil
	}
	if err != nil {
		return nil, sonicerr.New(sonicerr.KindFSTFailure, "open", err)
	}
	if len(raw) == 0 {
		return g, nil
	}
	f, err := vellum.Load(raw)
	if err != nil {
		return nil, sonicerr.New(sonicerr.KindFSTFailure, "load", err)
	}
	g.current.Store(&loadedFST{fst: f, raw: raw})
	return g, nil
}

// Close releases the loaded FST, if any. Open and Consolidate hold the
// FST bytes in memory; the file is not memory-mapped.
func (g *Graph) Close() error {
	if l := g.current.Load(); l != nil {
		return l.fst.Close()
	}
	return nil
}

// Contains reports whether word is a member of the graph: either
// already consolidated into the FST, or pending push and not yet
// shadowed by a later pop (spec §4.E, CONTAINS).
func (g *Graph) Contains(word string) (bool, error) {
	g.mu.Lock()
	_, popped := g.pendingPop[word]
	_, pushed := g.pendingPush[word]
	g.mu.Unlock()

	if popped {
		return false, nil
	}
	if pushed {
		return true, nil
	}

	l := g.current.Load()
	if l == nil {
		return false, nil
	}
	_, found, err := l.fst.Get([]byte(word))
	if err != nil {
		return false, sonicerr.New(sonicerr.KindFSTFailure, "contains", err)
	}
	return found, nil
}

// Prefix returns up to limit words starting with prefix, merging the
// consolidated FST with the pending overlay, in ascending order
// (spec §4.E, SUGGEST's underlying primitive).
func (g *Graph) Prefix(prefix string, limit int) ([]string, error) {
	g.mu.Lock()
	push := make([]string, 0, len(g.pendingPush))
	for w := range g.pendingPush {
		if strings.HasPrefix(w, prefix) {
			push = append(push, w)
		}
	}
	pop := make(map[string]struct{}, len(g.pendingPop))
	for w := range g.pendingPop {
		pop[w] = struct{}{}
	}
	g.mu.Unlock()
	sort.Strings(push)

	fstWords, err := g.scanFSTPrefix(prefix, -1)
	if err != nil {
		return nil, err
	}

	merged := mergeSortedUniqueExcluding(fstWords, push, pop)
	if limit >= 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// Fuzzy finds up to limit words within maxDistance edits of word, using
// go-edlib's Levenshtein-based ranking over a bounded candidate window
// (spec §4.E; go-edlib is used here rather than a hand-rolled distance
// routine so the candidate scoring follows the same library the rest of
// the pack reaches for, see SPEC_FULL.md's DOMAIN STACK table).
func (g *Graph) Fuzzy(word string, maxDistance int, limit int) ([]string, error) {
	candidates, err := g.allWords(g.cfg.FuzzyCandidateWindow)
	if err != nil {
		return nil, err
	}
	return fuzzyFilter(word, candidates, maxDistance, limit), nil
}

// allWords drains the merged (FST ∪ pending_push) \ pending_pop stream,
// capped at window entries, in ascending order.
func (g *Graph) allWords(window int) ([]string, error) {
	g.mu.Lock()
	push := make([]string, 0, len(g.pendingPush))
	for w := range g.pendingPush {
		push = append(push, w)
	}
	pop := make(map[string]struct{}, len(g.pendingPop))
	for w := range g.pendingPop {
		pop[w] = struct{}{}
	}
	g.mu.Unlock()
	sort.Strings(push)

	fstWords, err := g.scanFSTPrefix("", window)
	if err != nil {
		return nil, err
	}
	merged := mergeSortedUniqueExcluding(fstWords, push, pop)
	if window >= 0 && len(merged) > window {
		merged = merged[:window]
	}
	return merged, nil
}

// scanFSTPrefix walks the consolidated FST for every key with the given
// prefix, stopping after limit entries (limit < 0 means unbounded).
func (g *Graph) scanFSTPrefix(prefix string, limit int) ([]string, error) {
	l := g.current.Load()
	if l == nil {
		return nil, nil
	}

	upper := prefixUpperBound(prefix)
	it, err := l.fst.Iterator([]byte(prefix), upper)
	if errors.Is(err, vellum.ErrIteratorDone) {
		return nil, nil
	}
	if err != nil {
		return nil, sonicerr.New(sonicerr.KindFSTFailure, "iterator", err)
	}

	var out []string
	for err == nil {
		key, _ := it.Current()
		out = append(out, string(key))
		if limit >= 0 && len(out) >= limit {
			break
		}
		err = it.Next()
	}
	if err != nil && !errors.Is(err, vellum.ErrIteratorDone) {
		return nil, sonicerr.New(sonicerr.KindFSTFailure, "iterator_next", err)
	}
	return out, nil
}

// prefixUpperBound returns the smallest byte string that is strictly
// greater than every string with the given prefix, or nil for the
// unbounded upper end (prefix == "").
func prefixUpperBound(prefix string) []byte {
	if prefix == "" {
		return nil
	}
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			out := make([]byte, i+1)
			copy(out, b[:i+1])
			out[i]++
			return out
		}
	}
	return nil // prefix is all 0xff bytes; treat as unbounded
}

// mergeSortedUniqueExcluding merges two ascending, duplicate-free string
// slices, skipping any entry present in exclude.
func mergeSortedUniqueExcluding(a, b []string, exclude map[string]struct{}) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = appendUnlessExcluded(out, a[i], exclude)
			i++
			j++
		case a[i] < b[j]:
			out = appendUnlessExcluded(out, a[i], exclude)
			i++
		default:
			out = appendUnlessExcluded(out, b[j], exclude)
			j++
		}
	}
	for ; i < len(a); i++ {
		out = appendUnlessExcluded(out, a[i], exclude)
	}
	for ; j < len(b); j++ {
		out = appendUnlessExcluded(out, b[j], exclude)
	}
	return out
}

func appendUnlessExcluded(out []string, s string, exclude map[string]struct{}) []string {
	if _, skip := exclude[s]; skip {
		return out
	}
	if len(out) > 0 && out[len(out)-1] == s {
		return out // de-dup a run of equal values
	}
	return append(out, s)
}

// Push records word as pending until the next consolidation folds it
// into the FST proper (spec §4.E PUSH).
func (g *Graph) Push(word string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cfg.MaxWords > 0 {
		if _, already := g.pendingPush[word]; !already {
			if existing, _ := g.containsLocked(word); !existing {
				if g.approxWordCountLocked() >= g.cfg.MaxWords {
					return sonicerr.New(sonicerr.KindFSTFailure, "graph_full", nil)
				}
			}
		}
	}
	delete(g.pendingPop, word)
	g.pendingPush[word] = struct{}{}
	return nil
}

// containsLocked is Contains' FST-only check, used while g.mu is held.
func (g *Graph) containsLocked(word string) (bool, error) {
	l := g.current.Load()
	if l == nil {
		return false, nil
	}
	_, found, err := l.fst.Get([]byte(word))
	return found, err
}

// approxWordCountLocked estimates the graph's total distinct word count
// for the MaxWords guard: consolidated size plus net pending growth.
func (g *Graph) approxWordCountLocked() int {
	l := g.current.Load()
	base := 0
	if l != nil {
		base = int(l.fst.Len())
	}
	return base + len(g.pendingPush) - len(g.pendingPop)
}

// Pop records word as pending removal (spec §4.E POP).
func (g *Graph) Pop(word string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pendingPush, word)
	g.pendingPop[word] = struct{}{}
}

// PendingCount reports pending_count (spec §4.H INFO stat): the number
// of words awaiting consolidation, push and pop combined.
func (g *Graph) PendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pendingPush) + len(g.pendingPop)
}

// PendingSizeBytes approximates pending_size_bytes: the serialized
// length of every pending word, used by the tasker to prioritize
// consolidation under memory pressure.
func (g *Graph) PendingSizeBytes() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var total int64
	for w := range g.pendingPush {
		total += int64(len(w))
	}
	for w := range g.pendingPop {
		total += int64(len(w))
	}
	return total
}

// DueForConsolidation reports whether the tasker should consolidate this
// graph now: there must be pending writes, and either the graph has
// never been consolidated, ConsolidateAfter has elapsed since the last
// run, or the approximate word count has reached MaxWords (spec §4.E,
// §4.H consolidate_due). MaxSizeBytes is not consulted here; it is only
// checked by Consolidate against the newly built FST.
func (g *Graph) DueForConsolidation(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.pendingPush) == 0 && len(g.pendingPop) == 0 {
		return false
	}
	if g.lastConsolidated.IsZero() {
		return true
	}
	if now.Sub(g.lastConsolidated) >= g.cfg.ConsolidateAfter {
		return true
	}
	if g.cfg.MaxWords > 0 && g.approxWordCountLocked() >= g.cfg.MaxWords {
		return true
	}
	return false
}

// Consolidate rebuilds the FST from (old FST ∪ pending_push) \
// pending_pop, writes it to a temp file, fsyncs, and atomically renames
// it over path before swapping the in-memory pointer (spec §4.E
// Consolidation procedure). It is a no-op if there is nothing pending.
func (g *Graph) Consolidate() error {
	g.mu.Lock()
	if len(g.pendingPush) == 0 && len(g.pendingPop) == 0 {
		g.mu.Unlock()
		return nil
	}
	push := make([]string, 0, len(g.pendingPush))
	for w := range g.pendingPush {
		push = append(push, w)
	}
	pop := make(map[string]struct{}, len(g.pendingPop))
	for w := range g.pendingPop {
		pop[w] = struct{}{}
	}
	g.mu.Unlock()
	sort.Strings(push)

	existing, err := g.scanFSTPrefix("", -1)
	if err != nil {
		return err
	}
	merged := mergeSortedUniqueExcluding(existing, push, pop)

	if g.cfg.MaxWords > 0 && len(merged) > g.cfg.MaxWords {
		return sonicerr.New(sonicerr.KindFSTFailure, "graph_full", nil)
	}

	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return sonicerr.New(sonicerr.KindFSTFailure, "builder_new", err)
	}
	for i, w := range merged {
		if i > 0 && w == merged[i-1] {
			continue
		}
		if err := builder.Insert([]byte(w), 0); err != nil {
			return sonicerr.New(sonicerr.KindFSTFailure, "builder_insert", err)
		}
	}
	if err := builder.Close(); err != nil {
		return sonicerr.New(sonicerr.KindFSTFailure, "builder_close", err)
	}

	raw := buf.Bytes()
	if g.cfg.MaxSizeBytes > 0 && int64(len(raw)) > g.cfg.MaxSizeBytes {
		return sonicerr.New(sonicerr.KindFSTFailure, "graph_full", nil)
	}

	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return sonicerr.New(sonicerr.KindFSTFailure, "mkdir", err)
	}
	tmp := g.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return sonicerr.New(sonicerr.KindFSTFailure, "write_tmp", err)
	}
	if f, ferr := os.OpenFile(tmp, os.O_RDWR, 0o644); ferr == nil {
		_ = f.Sync()
		_ = f.Close()
	}
	if err := os.Rename(tmp, g.path); err != nil {
		return sonicerr.New(sonicerr.KindFSTFailure, "rename", err)
	}

	loaded, err := vellum.Load(raw)
	if err != nil {
		return sonicerr.New(sonicerr.KindFSTFailure, "reload", err)
	}

	old := g.current.Swap(&loadedFST{fst: loaded, raw: raw})
	if old != nil {
		_ = old.fst.Close()
	}

	g.mu.Lock()
	for _, w := range push {
		delete(g.pendingPush, w)
	}
	for w := range pop {
		delete(g.pendingPop, w)
	}
	g.lastConsolidated = time.Now()
	g.mu.Unlock()
	return nil
}
