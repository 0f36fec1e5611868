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

// Package fst implements the per-bucket word graph (spec §4.E): an
// immutable vellum FST holding every indexed term for a bucket, with a
// small in-memory pending overlay absorbing PUSH/POP until the next
// consolidation rebuilds the FST from scratch.
package fst

import "time"

// Config bounds one bucket's word graph (spec §4.E, §6).
type Config struct {
	// MaxWords caps the number of distinct terms a graph may hold before
	// PUSH starts failing with fst_failure(graph_full).
	MaxWords int
	// MaxSizeBytes caps the built FST file's size, checked after each
	// consolidation.
	MaxSizeBytes int64
	// ConsolidateAfter is the minimum interval between automatic
	// consolidations triggered by the tasker.
	ConsolidateAfter time.Duration
	// FuzzyCandidateWindow bounds how many FST entries Fuzzy scans before
	// ranking with edit distance, keeping a worst-case fuzzy query from
	// walking an entire large graph.
	FuzzyCandidateWindow int
}

// DefaultConfig matches the defaults implied throughout spec.md.
var DefaultConfig = Config{
	MaxWords:             0, // 0 == unbounded
	MaxSizeBytes:         0,
	ConsolidateAfter:     1 * time.Minute,
	FuzzyCandidateWindow: 4096,
}

// PoolConfig configures the FST handle pool (mirrors kv.PoolConfig;
// spec §9 applies the same pool discipline to both stores).
type PoolConfig struct {
	Capacity      int
	InactiveAfter time.Duration
}

// DefaultPoolConfig matches kv.DefaultPoolConfig.
var DefaultPoolConfig = PoolConfig{
	Capacity:      128,
	InactiveAfter: 5 * time.Minute,
}
