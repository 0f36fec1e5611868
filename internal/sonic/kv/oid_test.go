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

func TestOIDToIIDAssignsMonotonically(t *testing.T) {
	h := openTestHandle(t)
	bucket := identifier.HashBucket("default")

	first, err := h.OIDToIIDGetOrAssign(bucket, "object-a")
	if err != nil {
		t.Fatalf("OIDToIIDGetOrAssign: %v", err)
	}
	second, err := h.OIDToIIDGetOrAssign(bucket, "object-b")
	if err != nil {
		t.Fatalf("OIDToIIDGetOrAssign: %v", err)
	}
	if second != first+1 {
		t.Fatalf("expected monotonic IIDs, got %d then %d", first, second)
	}
}

func TestOIDToIIDGetOrAssignIsIdempotent(t *testing.T) {
	h := openTestHandle(t)
	bucket := identifier.HashBucket("default")

	first, err := h.OIDToIIDGetOrAssign(bucket, "object-a")
	if err != nil {
		t.Fatalf("OIDToIIDGetOrAssign: %v", err)
	}
	again, err := h.OIDToIIDGetOrAssign(bucket, "object-a")
	if err != nil {
		t.Fatalf("OIDToIIDGetOrAssign: %v", err)
	}
	if again != first {
		t.Fatalf("expected same IID on second call, got %d then %d", first, again)
	}
}

func TestOIDToIIDUnknownReturnsNotFound(t *testing.T) {
	h := openTestHandle(t)
	bucket := identifier.HashBucket("default")

	_, ok, err := h.OIDToIID(bucket, "never-indexed")
	if err != nil {
		t.Fatalf("OIDToIID: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for unknown oid")
	}
}

func TestIIDToOIDRoundTrip(t *testing.T) {
	h := openTestHandle(t)
	bucket := identifier.HashBucket("default")

	iid, err := h.OIDToIIDGetOrAssign(bucket, "object-a")
	if err != nil {
		t.Fatalf("OIDToIIDGetOrAssign: %v", err)
	}
	oid, ok, err := h.IIDToOID(bucket, iid)
	if err != nil {
		t.Fatalf("IIDToOID: %v", err)
	}
	if !ok || string(oid) != "object-a" {
		t.Fatalf("got %q, ok=%v, want %q", oid, ok, "object-a")
	}
}

func TestOIDReleaseRemovesBothDirections(t *testing.T) {
	h := openTestHandle(t)
	bucket := identifier.HashBucket("default")

	iid, err := h.OIDToIIDGetOrAssign(bucket, "object-a")
	if err != nil {
		t.Fatalf("OIDToIIDGetOrAssign: %v", err)
	}
	if err := h.AddTermToIID(bucket, iid, "hello"); err != nil {
		t.Fatalf("AddTermToIID: %v", err)
	}

	released, ok, err := h.OIDRelease(bucket, "object-a")
	if err != nil {
		t.Fatalf("OIDRelease: %v", err)
	}
	if !ok || released != iid {
		t.Fatalf("got released=%d ok=%v, want %d true", released, ok, iid)
	}

	if _, ok, err := h.OIDToIID(bucket, "object-a"); err != nil || ok {
		t.Fatalf("OIDToIID after release: ok=%v err=%v", ok, err)
	}
	if _, ok, err := h.IIDToOID(bucket, iid); err != nil || ok {
		t.Fatalf("IIDToOID after release: ok=%v err=%v", ok, err)
	}
	terms, err := h.TermsForIID(bucket, iid)
	if err != nil {
		t.Fatalf("TermsForIID: %v", err)
	}
	if len(terms) != 0 {
		t.Fatalf("expected no terms after release, got %v", terms)
	}
}

func TestOIDReleaseUnknownIsNoop(t *testing.T) {
	h := openTestHandle(t)
	bucket := identifier.HashBucket("default")

	_, ok, err := h.OIDRelease(bucket, "never-indexed")
	if err != nil {
		t.Fatalf("OIDRelease: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false releasing an unknown oid")
	}
}

func TestAddAndRemoveTermFromIID(t *testing.T) {
	h := openTestHandle(t)
	bucket := identifier.HashBucket("default")
	iid, err := h.OIDToIIDGetOrAssign(bucket, "object-a")
	if err != nil {
		t.Fatalf("OIDToIIDGetOrAssign: %v", err)
	}

	if err := h.AddTermToIID(bucket, iid, "hello"); err != nil {
		t.Fatalf("AddTermToIID: %v", err)
	}
	if err := h.AddTermToIID(bucket, iid, "world"); err != nil {
		t.Fatalf("AddTermToIID: %v", err)
	}
	// Re-adding an existing term must not duplicate it.
	if err := h.AddTermToIID(bucket, iid, "hello"); err != nil {
		t.Fatalf("AddTermToIID: %v", err)
	}

	terms, err := h.TermsForIID(bucket, iid)
	if err != nil {
		t.Fatalf("TermsForIID: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("got %v, want 2 distinct terms", terms)
	}

	if err := h.RemoveTermFromIID(bucket, iid, "hello"); err != nil {
		t.Fatalf("RemoveTermFromIID: %v", err)
	}
	terms, err = h.TermsForIID(bucket, iid)
	if err != nil {
		t.Fatalf("TermsForIID: %v", err)
	}
	if len(terms) != 1 || terms[0] != "world" {
		t.Fatalf("got %v, want [world]", terms)
	}
}
