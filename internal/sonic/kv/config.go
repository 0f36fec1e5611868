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

// Package kv implements the per-collection embedded ordered key-value
// store (spec §4.D) on top of Badger, plus the handle pool that lets
// channels, executors and the tasker share the same open databases
// (spec §9, "shared pools owned by the process scope").
package kv

import "time"

// Config is the enumerated engine configuration from spec §4.D. It is
// translated onto Badger's own options in Open.
type Config struct {
	Compress       bool
	Parallelism    int
	MaxFiles       int // 0 means "none" (spec: int|none)
	MaxCompactions int
	MaxFlushes     int
	WriteBufferKB  int
	WriteAheadLog  bool

	// RetainWordObjects bounds every posting list's length (spec §3,
	// default 1000).
	RetainWordObjects int
}

// DefaultConfig matches the defaults implied throughout spec.md.
var DefaultConfig = Config{
	Compress:          false,
	Parallelism:       2,
	MaxFiles:          0,
	MaxCompactions:    2,
	MaxFlushes:        2,
	WriteBufferKB:     4096,
	WriteAheadLog:     true,
	RetainWordObjects: 1000,
}

// PoolConfig configures the handle pool (spec §3 Lifecycle, §4.D Handle pool).
type PoolConfig struct {
	// Capacity is the fixed LRU size; 0 means unbounded.
	Capacity int
	// InactiveAfter is kv.pool.inactive_after: handles idle at least this
	// long are eligible for the janitor to close them.
	InactiveAfter time.Duration
}

// DefaultPoolConfig matches the teacher's default tick-driven janitor
// cadence, applied to the KV pool's idle window.
var DefaultPoolConfig = PoolConfig{
	Capacity:      128,
	InactiveAfter: 5 * time.Minute,
}
