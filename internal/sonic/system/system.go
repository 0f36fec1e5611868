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

// Package system wires the process-wide singletons (spec §9's design
// note: "pools, tasker, and channel listener are owned at the process
// scope, not per-connection") into a single Bootstrap/Shutdown pair, the
// way cmd/ratelimiter-api/main.go wires store, worker, and API server.
package system

import (
	"context"
	"fmt"
	"log"
	"time"

	"sonic/internal/sonic/channel"
	"sonic/internal/sonic/config"
	"sonic/internal/sonic/executor"
	"sonic/internal/sonic/fst"
	"sonic/internal/sonic/kv"
	"sonic/internal/sonic/tasker"
)

// System holds every process-scoped component, started by Bootstrap and
// torn down by Shutdown.
type System struct {
	cfg     config.Config
	kvPool  *kv.Pool
	fstPool *fst.Pool
	tasker  *tasker.Tasker
	server  *channel.Server
	logger  *log.Logger

	serveErr chan error
}

// Bootstrap constructs every pool and the channel listener from cfg, and
// starts the tasker and the TCP acceptor loop in background goroutines.
// It returns without waiting for the listener to bind; a listen failure
// is reported later through Wait.
func Bootstrap(cfg config.Config, logger *log.Logger) (*System, error) {
	if logger == nil {
		logger = log.Default()
	}

	kvPool := kv.NewPool(cfg.Store.KVPath, kv.Config{
		Compress:          cfg.KV.Compress,
		Parallelism:       cfg.KV.Parallelism,
		MaxFiles:          cfg.KV.MaxFiles,
		MaxCompactions:    cfg.KV.MaxCompactions,
		MaxFlushes:        cfg.KV.MaxFlushes,
		WriteBufferKB:     cfg.KV.WriteBufferKB,
		WriteAheadLog:     cfg.KV.WriteAheadLog,
		RetainWordObjects: cfg.KV.RetainWordObjects,
	}, kv.PoolConfig{
		Capacity:      cfg.KV.PoolCapacity,
		InactiveAfter: cfg.KV.PoolInactiveAfter,
	})

	fstPool := fst.NewPool(cfg.Store.FSTPath, fst.Config{
		MaxWords:             cfg.FST.GraphMaxWords,
		MaxSizeBytes:         cfg.FST.GraphMaxSizeBytes,
		ConsolidateAfter:     cfg.FST.GraphConsolidateAfter,
		FuzzyCandidateWindow: fst.DefaultConfig.FuzzyCandidateWindow,
	}, fst.PoolConfig{
		Capacity:      cfg.FST.PoolCapacity,
		InactiveAfter: cfg.FST.PoolInactiveAfter,
	})

	exec := executor.New(kvPool, fstPool, cfg.Store.FSTPath, executor.Config{
		QueryLimitMaximum:   cfg.Channel.QueryLimitMaximum,
		SuggestLimitMaximum: cfg.Channel.SuggestLimitMaximum,
		ListLimitMaximum:    cfg.Channel.ListLimitMaximum,
		QueryAlternatesTry:  cfg.Channel.QueryAlternatesTry,
		FuzzyMaxEditsShort:  executor.DefaultConfig.FuzzyMaxEditsShort,
		FuzzyMaxEditsLong:   executor.DefaultConfig.FuzzyMaxEditsLong,
		FuzzyLongWordLen:    executor.DefaultConfig.FuzzyLongWordLen,
	})

	tsk := tasker.New(kvPool, fstPool, tasker.Config{Tick: tasker.DefaultConfig.Tick}, logger)
	tsk.Start()

	server := channel.NewServer(channel.Config{
		Inet:           cfg.Channel.Inet,
		TCPTimeout:     cfg.Channel.TCPTimeout,
		AuthPassword:   cfg.Channel.AuthPassword,
		BufferSize:     cfg.Channel.BufferSize,
		SearchPoolSize: cfg.Channel.SearchPoolSize,
	}, exec, tsk, logger)

	s := &System{
		cfg:      cfg,
		kvPool:   kvPool,
		fstPool:  fstPool,
		tasker:   tsk,
		server:   server,
		logger:   logger,
		serveErr: make(chan error, 1),
	}

	go func() {
		s.serveErr <- server.ListenAndServe()
	}()

	return s, nil
}

// Wait blocks until the channel listener stops, returning its terminal
// error if any. Shutdown does not close the listener, so Wait returns
// only when listening or accepting fails.
func (s *System) Wait() error {
	return <-s.serveErr
}

// Shutdown raises the channel's stopping flag (new commands see ERR
// shutting_down, spec §4.H) then stops the tasker and closes both pools.
// It always waits the full drainTimeout for in-flight connections before
// closing the pools and returning.
func (s *System) Shutdown(drainTimeout time.Duration) error {
	s.server.Shutdown()
	s.tasker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	<-ctx.Done()

	s.kvPool.CloseAll()
	s.fstPool.CloseAll()
	s.logger.Printf("sonic: shutdown complete")
	return nil
}

func (s *System) String() string {
	return fmt.Sprintf("system(inet=%s kv=%s fst=%s)", s.cfg.Channel.Inet, s.cfg.Store.KVPath, s.cfg.Store.FSTPath)
}
