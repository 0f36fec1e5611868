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

import "sync/atomic"

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// markerWidth is the fixed marker length spec §4.H names ("an 8
// character base-62 marker").
const markerWidth = 8

// markerSource generates unique per-connection markers. A per-session
// monotonic counter is sufficient for "unique per connection at any
// given time" (spec §4.H); it need not be globally unique.
type markerSource struct {
	next atomic.Uint64
}

// nextMarker returns the next base-62 marker, left-padded with the alphabet's
// zero digit to markerWidth.
func (m *markerSource) nextMarker() string {
	n := m.next.Add(1)
	buf := make([]byte, markerWidth)
	for i := markerWidth - 1; i >= 0; i-- {
		buf[i] = base62Alphabet[n%62]
		n /= 62
	}
	return string(buf)
}
