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
	"time"

	"sonic/internal/sonic/identifier"
	"sonic/internal/sonic/sonicerr"
)

func TestPoolAcquireReusesHandle(t *testing.T) {
	p := NewPool(t.TempDir(), DefaultConfig, PoolConfig{Capacity: 4, InactiveAfter: time.Hour})
	collection := identifier.HashCollection("widgets")

	b1, err := p.Acquire(collection)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	b2, err := p.Acquire(collection)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if b1.Handle() != b2.Handle() {
		t.Fatalf("expected the same underlying handle to be reused")
	}
	if p.Len() != 1 {
		t.Fatalf("got %d open handles, want 1", p.Len())
	}
	b1.Release()
	b2.Release()
}

func TestPoolOpeningLatchReturnsBusy(t *testing.T) {
	p := NewPool(t.TempDir(), DefaultConfig, PoolConfig{Capacity: 4, InactiveAfter: time.Hour})
	collection := identifier.HashCollection("widgets")

	// Simulate a concurrent opener by holding the latch manually.
	p.opening.Store(collection, struct{}{})
	defer p.opening.Delete(collection)

	_, err := p.Acquire(collection)
	if err == nil {
		t.Fatalf("expected OpenBusy while another opener holds the latch")
	}
	serr, ok := err.(*sonicerr.Error)
	if !ok || serr.Kind != sonicerr.KindOpenBusy {
		t.Fatalf("got %v, want KindOpenBusy", err)
	}
}

func TestPoolJanitorClosesIdleHandles(t *testing.T) {
	p := NewPool(t.TempDir(), DefaultConfig, PoolConfig{Capacity: 4, InactiveAfter: time.Minute})
	collection := identifier.HashCollection("widgets")

	b, err := p.Acquire(collection)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	b.Release()

	if closed := p.Janitor(time.Now()); closed != 0 {
		t.Fatalf("got %d closed, want 0 (not idle yet)", closed)
	}
	if p.Len() != 1 {
		t.Fatalf("handle should still be cached")
	}

	future := time.Now().Add(2 * time.Minute)
	if closed := p.Janitor(future); closed != 1 {
		t.Fatalf("got %d closed, want 1", closed)
	}
	if p.Len() != 0 {
		t.Fatalf("expected handle evicted by janitor")
	}
}

func TestPoolJanitorDefersCloseWhileBorrowed(t *testing.T) {
	p := NewPool(t.TempDir(), DefaultConfig, PoolConfig{Capacity: 4, InactiveAfter: time.Minute})
	collection := identifier.HashCollection("widgets")

	b, err := p.Acquire(collection)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	future := time.Now().Add(2 * time.Minute)
	if closed := p.Janitor(future); closed != 0 {
		t.Fatalf("got %d closed while borrowed, want 0", closed)
	}
	if p.Len() != 1 {
		t.Fatalf("entry should remain visible (marked closing) while borrowed")
	}

	b.Release()
	if p.Len() != 0 {
		t.Fatalf("expected release to finalize the deferred close")
	}
}

func TestPoolEvictsLRUOverCapacity(t *testing.T) {
	p := NewPool(t.TempDir(), DefaultConfig, PoolConfig{Capacity: 1, InactiveAfter: time.Hour})

	a := identifier.HashCollection("a")
	b := identifier.HashCollection("b")

	ba, err := p.Acquire(a)
	if err != nil {
		t.Fatalf("Acquire a: %v", err)
	}
	ba.Release() // refcount 0, evictable

	bb, err := p.Acquire(b)
	if err != nil {
		t.Fatalf("Acquire b: %v", err)
	}
	defer bb.Release()

	if p.Len() != 1 {
		t.Fatalf("got %d open handles, want 1 (over-capacity eviction)", p.Len())
	}
}
