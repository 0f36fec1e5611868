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

package tasker

import (
	"path/filepath"
	"testing"
	"time"

	"sonic/internal/sonic/fst"
	"sonic/internal/sonic/identifier"
	"sonic/internal/sonic/kv"
)

func TestRunOnceConsolidatesPendingGraphs(t *testing.T) {
	base := t.TempDir()
	kvPool := kv.NewPool(filepath.Join(base, "kv"), kv.DefaultConfig, kv.DefaultPoolConfig)
	fstPool := fst.NewPool(filepath.Join(base, "fst"), fst.DefaultConfig, fst.DefaultPoolConfig)
	tk := New(kvPool, fstPool, Config{Tick: time.Hour}, nil)

	key := fst.GraphKey{Collection: identifier.HashCollection("c"), Bucket: identifier.HashBucket("b")}
	borrow, err := fstPool.Acquire(key)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := borrow.Graph().Push("hello"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	borrow.Release()

	tk.RunOnce(time.Now())

	borrow, err = fstPool.Acquire(key)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer borrow.Release()
	if borrow.Graph().PendingCount() != 0 {
		t.Fatalf("expected pending writes consolidated by RunOnce")
	}
}

func TestStartStopIsIdempotent(t *testing.T) {
	base := t.TempDir()
	kvPool := kv.NewPool(filepath.Join(base, "kv"), kv.DefaultConfig, kv.DefaultPoolConfig)
	fstPool := fst.NewPool(filepath.Join(base, "fst"), fst.DefaultConfig, fst.DefaultPoolConfig)
	tk := New(kvPool, fstPool, Config{Tick: time.Millisecond}, nil)

	tk.Start()
	time.Sleep(5 * time.Millisecond)
	tk.Stop()
	tk.Stop() // must not panic or block
}
