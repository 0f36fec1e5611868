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

import "time"

// Config carries the channel-level settings from spec §6/§4.H.
type Config struct {
	Inet           string
	TCPTimeout     time.Duration
	AuthPassword   string
	BufferSize     int
	SearchPoolSize int
}

// DefaultConfig matches the defaults spec.md names for the channel.
var DefaultConfig = Config{
	Inet:           "[::1]:1491",
	TCPTimeout:     300 * time.Second,
	BufferSize:     20000,
	SearchPoolSize: 0, // 0 resolves to runtime.NumCPU() in newSearchPool
}
