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

package channel

import (
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-rendezvous"

	"sonic/internal/sonic/telemetry"
)

// searchJob is one asynchronously dispatched QUERY/SUGGEST/LIST. Run
// executes against the executor; Reply delivers the outcome back onto
// the owning connection, or is a no-op if the connection has since
// been cancelled (spec §5, "a dropped TCP connection cancels any still
// pending search jobs belonging to it").
type searchJob struct {
	Run   func() ([]string, error)
	Reply func(words []string, err error)
}

// searchPool is the bounded worker pool backing async search dispatch
// (spec §4.H, §5). Jobs for the same (collection, bucket) pair
// rendezvous-hash onto the same worker, so repeat traffic against one
// bucket tends to land on an already-warm KV/FST handle.
type searchPool struct {
	workers []chan searchJob
	rdv     *rendezvous.Rendezvous
	queued  atomic.Int64
}

func newSearchPool(size int) *searchPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	nodes := make([]string, size)
	workers := make([]chan searchJob, size)
	for i := range nodes {
		nodes[i] = strconv.Itoa(i)
		workers[i] = make(chan searchJob, 64)
	}
	p := &searchPool{
		workers: workers,
		rdv:     rendezvous.New(nodes, hashNode),
	}
	for _, w := range workers {
		go p.run(w)
	}
	return p
}

func hashNode(s string) uint64 { return xxhash.Sum64String(s) }

func (p *searchPool) run(jobs chan searchJob) {
	for job := range jobs {
		p.queued.Add(-1)
		telemetry.SetSearchPoolQueued(int(p.queued.Load()))
		words, err := job.Run()
		job.Reply(words, err)
	}
}

// dispatch enqueues job on the worker rendezvous-selected for key
// (typically "<collection>/<bucket>").
func (p *searchPool) dispatch(key string, job searchJob) {
	idx, err := strconv.Atoi(p.rdv.Get(key))
	if err != nil {
		idx = 0
	}
	p.queued.Add(1)
	telemetry.SetSearchPoolQueued(int(p.queued.Load()))
	p.workers[idx] <- job
}
