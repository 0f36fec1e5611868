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

// Package telemetry exposes the Prometheus counters and gauges backing
// the INFO command's stats line (spec §4.H, §6), plus an optional
// standalone /metrics HTTP endpoint.
package telemetry

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	startedAt = time.Now()

	clientsConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sonic_clients_connected",
		Help: "Number of currently open TCP connections",
	})
	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sonic_commands_total",
		Help: "Total commands processed, by command name",
	}, []string{"command"})
	kvOpenHandles = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sonic_kv_open_handles",
		Help: "Number of currently open KV collection handles",
	})
	fstOpenHandles = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sonic_fst_open_handles",
		Help: "Number of currently open FST graph handles",
	})
	searchPoolQueued = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sonic_search_pool_queued",
		Help: "Number of search jobs currently queued on the async worker pool",
	})
	consolidationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sonic_consolidations_total",
		Help: "Total FST consolidations run",
	})

	// The Prometheus types above don't expose a cheap read-back path, so
	// INFO's plain-int stats (spec §4.H) are mirrored into these atomics
	// alongside every Inc/Dec/Set call rather than walking metric families.
	clientsConnectedCount atomic.Int64
	commandsTotalCount    atomic.Int64
	kvOpenHandlesCount    atomic.Int64
	fstOpenHandlesCount   atomic.Int64
	searchPoolQueuedCount atomic.Int64
)

func init() {
	prometheus.MustRegister(clientsConnected, commandsTotal, kvOpenHandles, fstOpenHandles, searchPoolQueued, consolidationsTotal)
}

// ClientConnected/ClientDisconnected track the live connection gauge.
func ClientConnected() {
	clientsConnected.Inc()
	clientsConnectedCount.Add(1)
}
func ClientDisconnected() {
	clientsConnected.Dec()
	clientsConnectedCount.Add(-1)
}

// CommandProcessed increments the per-command counter.
func CommandProcessed(command string) {
	commandsTotal.WithLabelValues(command).Inc()
	commandsTotalCount.Add(1)
}

// SetKVOpenHandles/SetFSTOpenHandles publish the pools' current size,
// called by the tasker after each janitor sweep.
func SetKVOpenHandles(n int) {
	kvOpenHandles.Set(float64(n))
	kvOpenHandlesCount.Store(int64(n))
}
func SetFSTOpenHandles(n int) {
	fstOpenHandles.Set(float64(n))
	fstOpenHandlesCount.Store(int64(n))
}

// SetSearchPoolQueued publishes the async dispatcher's current queue depth.
func SetSearchPoolQueued(n int) {
	searchPoolQueued.Set(float64(n))
	searchPoolQueuedCount.Store(int64(n))
}

// ConsolidationRan increments the consolidation counter.
func ConsolidationRan() { consolidationsTotal.Inc() }

// ClientsConnected, CommandsTotalCount, KVOpenHandlesCount,
// FSTOpenHandlesCount and SearchPoolQueuedCount read back the current
// gauge/counter values for INFO (spec §4.H).
func ClientsConnected() int      { return int(clientsConnectedCount.Load()) }
func CommandsTotalCount() int    { return int(commandsTotalCount.Load()) }
func KVOpenHandlesCount() int    { return int(kvOpenHandlesCount.Load()) }
func FSTOpenHandlesCount() int   { return int(fstOpenHandlesCount.Load()) }
func SearchPoolQueuedCount() int { return int(searchPoolQueuedCount.Load()) }

// Uptime returns the process uptime since package init.
func Uptime() time.Duration { return time.Since(startedAt) }

var serving atomic.Bool

// ServeMetrics starts a standalone Prometheus /metrics HTTP server on
// addr, if not already running. Safe to call multiple times.
func ServeMetrics(addr string) error {
	if addr == "" || !serving.CompareAndSwap(false, true) {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = server.ListenAndServe()
	}()
	return nil
}
