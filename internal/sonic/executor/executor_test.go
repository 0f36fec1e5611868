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

package executor

import (
	"path/filepath"
	"testing"
	"time"

	"sonic/internal/sonic/fst"
	"sonic/internal/sonic/kv"
	"sonic/internal/sonic/lexer"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	return newTestExecutorAt(t, t.TempDir())
}

func newTestExecutorAt(t *testing.T, base string) *Executor {
	t.Helper()
	kvPool := kv.NewPool(filepath.Join(base, "kv"), kv.DefaultConfig, kv.PoolConfig{Capacity: 8, InactiveAfter: time.Hour})
	fstBase := filepath.Join(base, "fst")
	fstPool := fst.NewPool(fstBase, fst.DefaultConfig, fst.PoolConfig{Capacity: 8, InactiveAfter: time.Hour})
	return New(kvPool, fstPool, fstBase, DefaultConfig)
}

func TestPushThenQuery(t *testing.T) {
	e := newTestExecutor(t)

	n, err := e.Push("msgs", "def", "c:1", "Hello Valerian", lexer.LocaleAutodetect)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d tokens inserted, want 2", n)
	}

	count, err := e.CountBucket("msgs", "def")
	if err != nil {
		t.Fatalf("CountBucket: %v", err)
	}
	if count != 1 {
		t.Fatalf("got %d live oids, want 1", count)
	}

	oids, err := e.Query("msgs", "def", "valerian", -1, 0, lexer.LocaleAutodetect)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(oids) != 1 || oids[0] != "c:1" {
		t.Fatalf("got %v, want [c:1]", oids)
	}
}

func TestQueryMissReturnsEmpty(t *testing.T) {
	e := newTestExecutor(t)
	oids, err := e.Query("msgs", "def", "nothing", 10, 0, lexer.LocaleAutodetect)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(oids) != 0 {
		t.Fatalf("got %v, want empty", oids)
	}
}

func TestPushStopWordElision(t *testing.T) {
	e := newTestExecutor(t)
	n, err := e.Push("msgs", "def", "c:2", "the lazy dog", lexer.LocaleEnglish)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d tokens inserted, want 2 (stop word dropped)", n)
	}
}

func TestPushPopRoundTrip(t *testing.T) {
	e := newTestExecutor(t)
	if _, err := e.Push("msgs", "def", "c:3", "alpha beta", lexer.LocaleNone); err != nil {
		t.Fatalf("Push: %v", err)
	}
	removed, err := e.Pop("msgs", "def", "c:3", "alpha beta")
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if removed != 2 {
		t.Fatalf("got %d removed, want 2", removed)
	}

	count, err := e.CountObject("msgs", "def", "c:3")
	if err != nil {
		t.Fatalf("CountObject: %v", err)
	}
	if count != 0 {
		t.Fatalf("got %d terms remaining, want 0 (object released)", count)
	}
}

func TestFlushBucketIsolation(t *testing.T) {
	e := newTestExecutor(t)
	if _, err := e.Push("msgs", "b1", "o1", "alpha", lexer.LocaleNone); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if _, err := e.Push("msgs", "b1", "o2", "alpha", lexer.LocaleNone); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if _, err := e.Push("msgs", "b1", "o3", "alpha", lexer.LocaleNone); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if _, err := e.Push("msgs", "b2", "o1", "beta", lexer.LocaleNone); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if _, err := e.Push("msgs", "b2", "o2", "beta", lexer.LocaleNone); err != nil {
		t.Fatalf("Push: %v", err)
	}

	n, err := e.FlushBucket("msgs", "b1")
	if err != nil {
		t.Fatalf("FlushBucket: %v", err)
	}
	if n != 3 {
		t.Fatalf("got %d, want 3", n)
	}

	count, err := e.CountBucket("msgs", "b2")
	if err != nil {
		t.Fatalf("CountBucket: %v", err)
	}
	if count != 2 {
		t.Fatalf("got %d, want 2 (b2 untouched by FLUSHB b1)", count)
	}

	count, err = e.CountBucket("msgs", "b1")
	if err != nil {
		t.Fatalf("CountBucket: %v", err)
	}
	if count != 0 {
		t.Fatalf("got %d, want 0 after flush", count)
	}
}

func TestSuggestSeesPendingPush(t *testing.T) {
	e := newTestExecutor(t)
	if _, err := e.Push("col", "buc", "o1", "englishman", lexer.LocaleNone); err != nil {
		t.Fatalf("Push: %v", err)
	}
	words, err := e.Suggest("col", "buc", "eng", 10)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	found := false
	for _, w := range words {
		if w == "englishman" {
			found = true
		}
	}
	if !found {
		t.Fatalf("got %v, want englishman present before consolidation", words)
	}
}

func TestQueryLimitZeroReturnsEmpty(t *testing.T) {
	e := newTestExecutor(t)
	if _, err := e.Push("col", "buc", "o1", "alpha", lexer.LocaleNone); err != nil {
		t.Fatalf("Push: %v", err)
	}
	oids, err := e.Query("col", "buc", "alpha", 0, 0, lexer.LocaleNone)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(oids) != 0 {
		t.Fatalf("got %v, want empty for LIMIT(0)", oids)
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	liveDir := t.TempDir()
	e := newTestExecutorAt(t, liveDir)
	if _, err := e.Push("col", "buc", "o1", "hello world", lexer.LocaleNone); err != nil {
		t.Fatalf("Push: %v", err)
	}

	backupDir := filepath.Join(t.TempDir(), "backup")
	if err := e.Backup(backupDir); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	restoreDir := t.TempDir()
	r := newTestExecutorAt(t, restoreDir)
	if err := r.Restore(backupDir); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	oids, err := r.Query("col", "buc", "hello", -1, 0, lexer.LocaleNone)
	if err != nil {
		t.Fatalf("Query after restore: %v", err)
	}
	if len(oids) != 1 || oids[0] != "o1" {
		t.Fatalf("got %v after restore, want [o1]", oids)
	}
}
