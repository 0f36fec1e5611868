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

// Package tasker runs the single background scheduler described in spec
// §4.G: on a fixed tick it sweeps both pools' janitors, then consolidates
// every FST graph that fst.Graph.DueForConsolidation reports as due. The
// ticker/stopChan/WaitGroup shape
// mirrors the teacher's background worker.
package tasker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sonic/internal/sonic/fst"
	"sonic/internal/sonic/kv"
	"sonic/internal/sonic/telemetry"
)

// Config controls the tasker's tick cadence (spec §4.G, default 10s).
type Config struct {
	Tick time.Duration
}

// DefaultConfig matches spec §4.G's default tick.
var DefaultConfig = Config{Tick: 10 * time.Second}

// Logger is the minimal structured-logging surface the tasker needs;
// satisfied by log.Logger and by test doubles.
type Logger interface {
	Printf(format string, args ...any)
}

// Tasker owns no pool handle across its own sleep: each tick acquires,
// processes, and releases via the pools' own Janitor/ConsolidateDue
// methods (spec §4.G, "never holds a pool handle across its own sleep").
type Tasker struct {
	kvPool  *kv.Pool
	fstPool *fst.Pool
	cfg     Config
	logger  Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

// New constructs a Tasker over the process-wide pools. logger may be
// nil, in which case ticks run silently.
func New(kvPool *kv.Pool, fstPool *fst.Pool, cfg Config, logger Logger) *Tasker {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultConfig.Tick
	}
	return &Tasker{
		kvPool:   kvPool,
		fstPool:  fstPool,
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches the tick loop in its own goroutine.
func (t *Tasker) Start() {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.loop()
	}()
}

// Stop signals the loop to exit and waits for the in-flight tick, if
// any, to finish.
func (t *Tasker) Stop() {
	if !atomic.CompareAndSwapUint32(&t.stopped, 0, 1) {
		return
	}
	close(t.stopChan)
	t.wg.Wait()
}

func (t *Tasker) loop() {
	ticker := time.NewTicker(t.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.RunOnce(time.Now())
		case <-t.stopChan:
			return
		}
	}
}

// RunOnce executes a single tick: janitor sweep over both pools, then
// consolidation of every FST graph that is due (spec §4.G). Control-mode
// `TRIGGER consolidate` does not use it; it calls Consolidate instead.
func (t *Tasker) RunOnce(now time.Time) {
	kvClosed := t.kvPool.Janitor(now)
	fstClosed := t.fstPool.Janitor(now)
	consolidated, err := t.fstPool.ConsolidateDue()

	telemetry.SetKVOpenHandles(t.kvPool.Len())
	telemetry.SetFSTOpenHandles(t.fstPool.Len())
	for i := 0; i < consolidated; i++ {
		telemetry.ConsolidationRan()
	}

	if t.logger != nil {
		t.logger.Printf("tasker tick: kv_closed=%d fst_closed=%d consolidated=%d", kvClosed, fstClosed, consolidated)
		if err != nil {
			t.logger.Printf("tasker consolidation error: %v", err)
		}
	}
}

// Consolidate runs only the consolidation step, used by `TRIGGER
// consolidate` when the caller wants consolidation without also forcing
// an idle sweep.
func (t *Tasker) Consolidate() (int, error) {
	return t.fstPool.ConsolidateAll()
}

var _ fmt.Stringer = (*Tasker)(nil)

// String reports the tasker's configured tick, useful in INFO output.
func (t *Tasker) String() string {
	return fmt.Sprintf("tasker(tick=%s)", t.cfg.Tick)
}
