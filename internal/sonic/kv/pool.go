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
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"sonic/internal/sonic/identifier"
	"sonic/internal/sonic/sonicerr"
)

// poolEntry wraps one opened Handle with the bookkeeping the pool needs:
// a reference count for in-flight borrows, a last-access timestamp for
// the janitor, and a closing flag for deferred close (spec §9, "Pool
// re-entrancy").
type poolEntry struct {
	handle     *Handle
	refCount   int32
	lastAccess int64 // UnixNano, atomic
	closing    atomic.Bool
	elem       *list.Element
}

// Pool is the fixed-capacity LRU handle cache keyed by CollectionHash
// (spec §4.D, §9). It is safe for concurrent use by channels, executors
// and the tasker.
type Pool struct {
	basePath string
	cfg      Config
	poolCfg  PoolConfig

	mu      sync.Mutex
	entries map[identifier.CollectionHash]*poolEntry
	lru     *list.List // front = most recently used

	opening sync.Map // collection -> struct{}, serializes concurrent opens
}

// NewPool constructs an empty pool. basePath is the KV store root
// (spec §6, store.kv.path).
func NewPool(basePath string, cfg Config, poolCfg PoolConfig) *Pool {
	return &Pool{
		basePath: basePath,
		cfg:      cfg,
		poolCfg:  poolCfg,
		entries:  make(map[identifier.CollectionHash]*poolEntry),
		lru:      list.New(),
	}
}

// Borrow is a short-lived handle reference returned by Acquire. Callers
// must call Release exactly once.
type Borrow struct {
	pool       *Pool
	collection identifier.CollectionHash
	entry      *poolEntry
}

// Handle returns the underlying opened KV handle.
func (b *Borrow) Handle() *Handle { return b.entry.handle }

// Release drops the borrow. If the entry was marked for close by the
// janitor while borrowed, the last release finalizes the close.
func (b *Borrow) Release() {
	if atomic.AddInt32(&b.entry.refCount, -1) == 0 && b.entry.closing.Load() {
		b.pool.finalizeClose(b.collection)
	}
}

// Acquire returns a borrowed handle for collection, opening it on first
// use. It fails with sonicerr.KindOpenBusy if another goroutine is
// already opening the same collection, and sonicerr.KindOpenFailed if
// the underlying engine fails to open (spec §4.D).
func (p *Pool) Acquire(collection identifier.CollectionHash) (*Borrow, error) {
	if b := p.tryAcquireExisting(collection); b != nil {
		return b, nil
	}

	if _, loaded := p.opening.LoadOrStore(collection, struct{}{}); loaded {
		return nil, sonicerr.New(sonicerr.KindOpenBusy, "collection already opening", nil)
	}
	defer p.opening.Delete(collection)

	// Someone may have finished opening it between our failed fast path
	// and winning the opening latch.
	if b := p.tryAcquireExisting(collection); b != nil {
		return b, nil
	}

	h, err := Open(p.basePath, collection, p.cfg)
	if err != nil {
		return nil, err
	}

	entry := &poolEntry{handle: h, refCount: 1, lastAccess: time.Now().UnixNano()}
	p.mu.Lock()
	entry.elem = p.lru.PushFront(collection)
	p.entries[collection] = entry
	p.evictIfOverCapacityLocked()
	p.mu.Unlock()

	return &Borrow{pool: p, collection: collection, entry: entry}, nil
}

func (p *Pool) tryAcquireExisting(collection identifier.CollectionHash) *Borrow {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[collection]
	if !ok || entry.closing.Load() {
		return nil
	}
	atomic.AddInt32(&entry.refCount, 1)
	atomic.StoreInt64(&entry.lastAccess, time.Now().UnixNano())
	p.lru.MoveToFront(entry.elem)
	return &Borrow{pool: p, collection: collection, entry: entry}
}

// evictIfOverCapacityLocked closes the least-recently-used idle (refcount
// zero) entry when the pool is over capacity. Called with p.mu held.
func (p *Pool) evictIfOverCapacityLocked() {
	if p.poolCfg.Capacity <= 0 {
		return
	}
	for len(p.entries) > p.poolCfg.Capacity {
		elem := p.lru.Back()
		evicted := false
		for elem != nil {
			collection := elem.Value.(identifier.CollectionHash)
			entry := p.entries[collection]
			if atomic.LoadInt32(&entry.refCount) == 0 {
				_ = entry.handle.Close()
				delete(p.entries, collection)
				p.lru.Remove(elem)
				evicted = true
				break
			}
			elem = elem.Prev()
		}
		if !evicted {
			return // everything left over capacity is in-flight; try again next time
		}
	}
}

// Janitor closes every handle idle for at least poolCfg.InactiveAfter. A
// busy handle is marked closing instead; the last Release finalizes it.
// Returns the number of handles actually closed in this pass.
func (p *Pool) Janitor(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	closed := 0
	for collection, entry := range p.entries {
		idleSince := time.Unix(0, atomic.LoadInt64(&entry.lastAccess))
		if now.Sub(idleSince) < p.poolCfg.InactiveAfter {
			continue
		}
		if atomic.LoadInt32(&entry.refCount) == 0 {
			_ = entry.handle.Close()
			delete(p.entries, collection)
			p.lru.Remove(entry.elem)
			closed++
		} else {
			entry.closing.Store(true)
		}
	}
	return closed
}

func (p *Pool) finalizeClose(collection identifier.CollectionHash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[collection]
	if !ok || !entry.closing.Load() || atomic.LoadInt32(&entry.refCount) != 0 {
		return
	}
	_ = entry.handle.Close()
	delete(p.entries, collection)
	p.lru.Remove(entry.elem)
}

// Evict force-closes collection's entry right away if it is idle, or
// marks it closing if borrowed. Used by FLUSHC after a delete_prefix so
// a stale cached handle is never reused (spec §4.F.6).
func (p *Pool) Evict(collection identifier.CollectionHash) {
	p.mu.Lock()
	entry, ok := p.entries[collection]
	if !ok {
		p.mu.Unlock()
		return
	}
	if atomic.LoadInt32(&entry.refCount) == 0 {
		_ = entry.handle.Close()
		delete(p.entries, collection)
		p.lru.Remove(entry.elem)
		p.mu.Unlock()
		return
	}
	entry.closing.Store(true)
	p.mu.Unlock()
}

// Len reports the number of currently open handles (for INFO stats).
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// BasePath returns the store.kv.path root this pool was opened with.
func (p *Pool) BasePath() string { return p.basePath }

// WithExclusiveLock closes every open handle and holds the pool's lock
// for the duration of fn, so no collection can be reopened until fn
// returns. Used by `TRIGGER backup`/`TRIGGER restore` (spec §4.H), which
// must copy the store directory tree while nothing is writing to it.
func (p *Pool) WithExclusiveLock(fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for collection, entry := range p.entries {
		_ = entry.handle.Close()
		delete(p.entries, collection)
	}
	p.lru.Init()
	return fn()
}

// CloseAll force-closes every handle, regardless of refcount. Callers
// (system shutdown) must have already drained in-flight operations.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for collection, entry := range p.entries {
		_ = entry.handle.Close()
		delete(p.entries, collection)
	}
	p.lru.Init()
}
