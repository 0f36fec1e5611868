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

package telemetry

import "testing"

func TestUptimeAdvances(t *testing.T) {
	first := Uptime()
	second := Uptime()
	if second < first {
		t.Fatalf("uptime went backwards: %v then %v", first, second)
	}
}

func TestCountersDoNotPanic(t *testing.T) {
	ClientConnected()
	CommandProcessed("PUSH")
	SetKVOpenHandles(3)
	SetFSTOpenHandles(2)
	SetSearchPoolQueued(1)
	ConsolidationRan()
	ClientDisconnected()
}

func TestServeMetricsIsIdempotentOnEmptyAddr(t *testing.T) {
	if err := ServeMetrics(""); err != nil {
		t.Fatalf("ServeMetrics(\"\"): %v", err)
	}
}
