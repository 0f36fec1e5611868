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
	"container/list"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"sonic/internal/sonic/identifier"
	"sonic/internal/sonic/sonicerr"
)

// GraphKey identifies one bucket's word graph within the FST pool. Each
// collection/bucket pair gets its own FST file (spec §4.E).
type GraphKey struct {
	Collection identifier.CollectionHash
	Bucket     identifier.BucketHash
}

// GraphPath computes the on-disk FST file path for one bucket, mirroring
// kv.CollectionDir's naming convention (spec §6, store.fst.path).
func GraphPath(basePath string, key GraphKey) string {
	return filepath.Join(basePath, hashHex(uint32(key.Collection)), hashHex(uint32(key.Bucket))+".fst")
}

// CollectionDir returns the directory holding every bucket FST file for
// one collection (spec §6, store.fst.path/<collection>/).
func CollectionDir(basePath string, collection identifier.CollectionHash) string {
	return filepath.Join(basePath, hashHex(uint32(collection)))
}

func hashHex(h uint32) string {
	const hex = "0123456789abcdef"
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = hex[h&0xf]
		h >>= 4
	}
	return string(b)
}

type poolEntry struct {
	graph      *Graph
	refCount   int32
	lastAccess int64
	closing    atomic.Bool
	elem       *list.Element
}

// Pool is the FST analogue of kv.Pool: a fixed-capacity LRU cache of
// open *Graph handles with the same opening-latch/janitor/borrow
// discipline (spec §9).
type Pool struct {
	basePath string
	cfg      Config
	poolCfg  PoolConfig

	mu      sync.Mutex
	entries map[GraphKey]*poolEntry
	lru     *list.List

	opening sync.Map
}

func NewPool(basePath string, cfg Config, poolCfg PoolConfig) *Pool {
	return &Pool{
		basePath: basePath,
		cfg:      cfg,
		poolCfg:  poolCfg,
		entries:  make(map[GraphKey]*poolEntry),
		lru:      list.New(),
	}
}

// Borrow is a short-lived Graph reference returned by Acquire.
type Borrow struct {
	pool  *Pool
	key   GraphKey
	entry *poolEntry
}

func (b *Borrow) Graph() *Graph { return b.entry.graph }

func (b *Borrow) Release() {
	if atomic.AddInt32(&b.entry.refCount, -1) == 0 && b.entry.closing.Load() {
		b.pool.finalizeClose(b.key)
	}
}

// Acquire opens (or reuses) the word graph for key.
func (p *Pool) Acquire(key GraphKey) (*Borrow, error) {
	if b := p.tryAcquireExisting(key); b != nil {
		return b, nil
	}

	if _, loaded := p.opening.LoadOrStore(key, struct{}{}); loaded {
		return nil, sonicerr.New(sonicerr.KindOpenBusy, "graph already opening", nil)
	}
	defer p.opening.Delete(key)

	if b := p.tryAcquireExisting(key); b != nil {
		return b, nil
	}

	g, err := Open(GraphPath(p.basePath, key), p.cfg)
	if err != nil {
		return nil, err
	}

	entry := &poolEntry{graph: g, refCount: 1, lastAccess: time.Now().UnixNano()}
	p.mu.Lock()
	entry.elem = p.lru.PushFront(key)
	p.entries[key] = entry
	p.evictIfOverCapacityLocked()
	p.mu.Unlock()

	return &Borrow{pool: p, key: key, entry: entry}, nil
}

func (p *Pool) tryAcquireExisting(key GraphKey) *Borrow {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[key]
	if !ok || entry.closing.Load() {
		return nil
	}
	atomic.AddInt32(&entry.refCount, 1)
	atomic.StoreInt64(&entry.lastAccess, time.Now().UnixNano())
	p.lru.MoveToFront(entry.elem)
	return &Borrow{pool: p, key: key, entry: entry}
}

func (p *Pool) evictIfOverCapacityLocked() {
	if p.poolCfg.Capacity <= 0 {
		return
	}
	for len(p.entries) > p.poolCfg.Capacity {
		elem := p.lru.Back()
		evicted := false
		for elem != nil {
			key := elem.Value.(GraphKey)
			entry := p.entries[key]
			if atomic.LoadInt32(&entry.refCount) == 0 {
				_ = entry.graph.Close()
				delete(p.entries, key)
				p.lru.Remove(elem)
				evicted = true
				break
			}
			elem = elem.Prev()
		}
		if !evicted {
			return
		}
	}
}

// Janitor closes graphs idle at least poolCfg.InactiveAfter, deferring
// busy ones until their last Release (spec §9 tasker). It does not
// consolidate; the tasker runs ConsolidateDue for that.
func (p *Pool) Janitor(now time.Time) (closed int) {
	p.mu.Lock()
	idle := make([]GraphKey, 0)
	for key, entry := range p.entries {
		if now.Sub(time.Unix(0, atomic.LoadInt64(&entry.lastAccess))) < p.poolCfg.InactiveAfter {
			continue
		}
		if atomic.LoadInt32(&entry.refCount) == 0 {
			idle = append(idle, key)
		} else {
			entry.closing.Store(true)
		}
	}
	for _, key := range idle {
		entry := p.entries[key]
		_ = entry.graph.Close()
		delete(p.entries, key)
		p.lru.Remove(entry.elem)
		closed++
	}
	p.mu.Unlock()
	return closed
}

// ConsolidateDue runs Consolidate on every open graph that is due per
// Graph.DueForConsolidation, used by the tasker's periodic sweep
// (spec §4.E Consolidation procedure, gated by fst.graph.consolidate_after
// rather than firing on every tick).
func (p *Pool) ConsolidateDue() (consolidated int, firstErr error) {
	return p.consolidateDueAt(time.Now())
}

func (p *Pool) consolidateDueAt(now time.Time) (consolidated int, firstErr error) {
	p.mu.Lock()
	graphs := make([]*Graph, 0, len(p.entries))
	for _, entry := range p.entries {
		graphs = append(graphs, entry.graph)
	}
	p.mu.Unlock()

	for _, g := range graphs {
		if !g.DueForConsolidation(now) {
			continue
		}
		if err := g.Consolidate(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		consolidated++
	}
	return consolidated, firstErr
}

// ConsolidateAll force-runs Consolidate on every open graph with pending
// writes, ignoring ConsolidateAfter/size gating. Used by `TRIGGER
// consolidate`, which asks for consolidation unconditionally rather than
// waiting for the next due tick (spec §4.H).
func (p *Pool) ConsolidateAll() (consolidated int, firstErr error) {
	p.mu.Lock()
	graphs := make([]*Graph, 0, len(p.entries))
	for _, entry := range p.entries {
		graphs = append(graphs, entry.graph)
	}
	p.mu.Unlock()

	for _, g := range graphs {
		if g.PendingCount() == 0 {
			continue
		}
		if err := g.Consolidate(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		consolidated++
	}
	return consolidated, firstErr
}

func (p *Pool) finalizeClose(key GraphKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[key]
	if !ok || !entry.closing.Load() || atomic.LoadInt32(&entry.refCount) != 0 {
		return
	}
	_ = entry.graph.Close()
	delete(p.entries, key)
	p.lru.Remove(entry.elem)
}

// Evict force-closes (or marks for close) key's entry, used by FLUSHB/
// FLUSHC so a stale cached graph is never reused after its backing file
// is removed (spec §4.F.6).
func (p *Pool) Evict(key GraphKey) {
	p.mu.Lock()
	entry, ok := p.entries[key]
	if !ok {
		p.mu.Unlock()
		return
	}
	if atomic.LoadInt32(&entry.refCount) == 0 {
		_ = entry.graph.Close()
		delete(p.entries, key)
		p.lru.Remove(entry.elem)
		p.mu.Unlock()
		return
	}
	entry.closing.Store(true)
	p.mu.Unlock()
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// BasePath returns the store.fst.path root this pool was opened with.
func (p *Pool) BasePath() string { return p.basePath }

// WithExclusiveLock closes every open graph and holds the pool's lock for
// the duration of fn, so no bucket graph can be reopened until fn
// returns. Used by `TRIGGER backup`/`TRIGGER restore` (spec §4.H).
func (p *Pool) WithExclusiveLock(fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, entry := range p.entries {
		_ = entry.graph.Close()
		delete(p.entries, key)
	}
	p.lru.Init()
	return fn()
}

func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, entry := range p.entries {
		_ = entry.graph.Close()
		delete(p.entries, key)
	}
	p.lru.Init()
}
