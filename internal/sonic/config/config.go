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

// Package config loads the TOML configuration file named on the CLI
// (spec §6, `sonic -c <path/to/config.cfg>`), substituting `${env.NAME}`
// references before parsing.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full on-disk configuration, one section per component.
type Config struct {
	Channel ChannelConfig `toml:"channel"`
	Store   StoreConfig   `toml:"store"`
	KV      KVSection     `toml:"kv"`
	FST     FSTSection    `toml:"fst"`
}

type ChannelConfig struct {
	Inet               string        `toml:"inet"`
	TCPTimeout         time.Duration `toml:"tcp_timeout"`
	AuthPassword       string        `toml:"auth_password"`
	BufferSize         int           `toml:"buffer_size"`
	SearchPoolSize     int           `toml:"search_pool_size"`
	QueryAlternatesTry int           `toml:"query_alternates_try"`

	QueryLimitMaximum   int `toml:"query_limit_maximum"`
	SuggestLimitMaximum int `toml:"suggest_limit_maximum"`
	ListLimitMaximum    int `toml:"list_limit_maximum"`
}

type StoreConfig struct {
	KVPath  string `toml:"kv_path"`
	FSTPath string `toml:"fst_path"`
}

type KVSection struct {
	Compress          bool          `toml:"compress"`
	Parallelism       int           `toml:"parallelism"`
	MaxFiles          int           `toml:"max_files"`
	MaxCompactions    int           `toml:"max_compactions"`
	MaxFlushes        int           `toml:"max_flushes"`
	WriteBufferKB     int           `toml:"write_buffer_kb"`
	WriteAheadLog     bool          `toml:"write_ahead_log"`
	RetainWordObjects int           `toml:"retain_word_objects"`
	PoolCapacity      int           `toml:"pool_capacity"`
	PoolInactiveAfter time.Duration `toml:"pool_inactive_after"`
}

type FSTSection struct {
	GraphMaxWords        int           `toml:"graph_max_words"`
	GraphMaxSizeBytes    int64         `toml:"graph_max_size_bytes"`
	GraphConsolidateAfter time.Duration `toml:"graph_consolidate_after"`
	PoolCapacity         int           `toml:"pool_capacity"`
	PoolInactiveAfter    time.Duration `toml:"pool_inactive_after"`
}

// Default matches the defaults named throughout spec.md.
var Default = Config{
	Channel: ChannelConfig{
		Inet:                "[::1]:1491",
		TCPTimeout:          300 * time.Second,
		BufferSize:          20000,
		SearchPoolSize:      0, // 0 == number of CPU cores, resolved by the caller
		QueryAlternatesTry:  0,
		QueryLimitMaximum:   100,
		SuggestLimitMaximum: 20,
		ListLimitMaximum:    100,
	},
	Store: StoreConfig{
		KVPath:  "./data/kv",
		FSTPath: "./data/fst",
	},
	KV: KVSection{
		Parallelism:       2,
		MaxCompactions:    2,
		MaxFlushes:        2,
		WriteBufferKB:     4096,
		WriteAheadLog:     true,
		RetainWordObjects: 1000,
		PoolCapacity:      128,
		PoolInactiveAfter: 5 * time.Minute,
	},
	FST: FSTSection{
		GraphConsolidateAfter: 1 * time.Minute,
		PoolCapacity:          128,
		PoolInactiveAfter:     5 * time.Minute,
	},
}

var envRef = regexp.MustCompile(`\$\{env\.([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnv replaces every ${env.NAME} reference with the named
// environment variable's value, failing startup if any name is unset
// (spec §6: "missing names fail startup").
func substituteEnv(raw []byte) ([]byte, error) {
	var missing []string
	out := envRef.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envRef.FindSubmatch(match)[1]
		val, ok := os.LookupEnv(string(name))
		if !ok {
			missing = append(missing, string(name))
			return match
		}
		return []byte(val)
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: unset environment variable(s) referenced: %v", missing)
	}
	return out, nil
}

// Load reads, substitutes, and parses the TOML file at path, starting
// from Default so unset fields keep their documented defaults.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	substituted, err := substituteEnv(raw)
	if err != nil {
		return Config{}, err
	}

	cfg := Default
	if err := toml.Unmarshal(substituted, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
