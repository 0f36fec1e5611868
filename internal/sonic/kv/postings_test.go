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

package kv

import (
	"testing"

	"sonic/internal/sonic/identifier"
)

func TestPostingPushMRUOrder(t *testing.T) {
	h := openTestHandle(t)
	bucket := identifier.HashBucket("default")
	term := identifier.HashTerm("hello")

	for _, iid := range []identifier.IID{1, 2, 3} {
		if _, err := h.PostingPush(bucket, term, iid); err != nil {
			t.Fatalf("PostingPush: %v", err)
		}
	}

	ids, err := h.PostingGet(bucket, term)
	if err != nil {
		t.Fatalf("PostingGet: %v", err)
	}
	want := []identifier.IID{3, 2, 1}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestPostingPushReinsertMovesToFront(t *testing.T) {
	h := openTestHandle(t)
	bucket := identifier.HashBucket("default")
	term := identifier.HashTerm("hello")

	for _, iid := range []identifier.IID{1, 2, 3} {
		if _, err := h.PostingPush(bucket, term, iid); err != nil {
			t.Fatalf("PostingPush: %v", err)
		}
	}
	// Re-push 1: it must move to front, not duplicate.
	if _, err := h.PostingPush(bucket, term, 1); err != nil {
		t.Fatalf("PostingPush: %v", err)
	}

	ids, err := h.PostingGet(bucket, term)
	if err != nil {
		t.Fatalf("PostingGet: %v", err)
	}
	want := []identifier.IID{1, 3, 2}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestPostingPushTruncatesToRetain(t *testing.T) {
	h := openTestHandle(t)
	h.retain = 2
	bucket := identifier.HashBucket("default")
	term := identifier.HashTerm("hello")

	if _, err := h.PostingPush(bucket, term, 1); err != nil {
		t.Fatalf("PostingPush: %v", err)
	}
	if _, err := h.PostingPush(bucket, term, 2); err != nil {
		t.Fatalf("PostingPush: %v", err)
	}
	evicted, err := h.PostingPush(bucket, term, 3)
	if err != nil {
		t.Fatalf("PostingPush: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != identifier.IID(1) {
		t.Fatalf("got evicted=%v, want [1]", evicted)
	}

	ids, err := h.PostingGet(bucket, term)
	if err != nil {
		t.Fatalf("PostingGet: %v", err)
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 2 {
		t.Fatalf("got %v, want [3 2]", ids)
	}
}

func TestPostingRemoveEmptiesKey(t *testing.T) {
	h := openTestHandle(t)
	bucket := identifier.HashBucket("default")
	term := identifier.HashTerm("hello")

	if _, err := h.PostingPush(bucket, term, 1); err != nil {
		t.Fatalf("PostingPush: %v", err)
	}
	empty, err := h.PostingEmpty(bucket, term)
	if err != nil || empty {
		t.Fatalf("expected non-empty before remove, empty=%v err=%v", empty, err)
	}

	if err := h.PostingRemove(bucket, term, 1); err != nil {
		t.Fatalf("PostingRemove: %v", err)
	}
	empty, err = h.PostingEmpty(bucket, term)
	if err != nil {
		t.Fatalf("PostingEmpty: %v", err)
	}
	if !empty {
		t.Fatalf("expected empty after removing sole entry")
	}
}

func TestPostingRemoveMissingIsNoop(t *testing.T) {
	h := openTestHandle(t)
	bucket := identifier.HashBucket("default")
	term := identifier.HashTerm("hello")

	if err := h.PostingRemove(bucket, term, 99); err != nil {
		t.Fatalf("PostingRemove on empty list: %v", err)
	}
}
