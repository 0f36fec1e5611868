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

// Command sonic runs the identifier search server described in spec §6:
// `sonic -c <path/to/config.cfg>`.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sonic/internal/sonic/config"
	"sonic/internal/sonic/system"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("c", "", "path to config.cfg")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	if *configPath == "" {
		logger.Printf("sonic: -c <path/to/config.cfg> is required")
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Printf("sonic: %v", err)
		return 1
	}

	sys, err := system.Bootstrap(cfg, logger)
	if err != nil {
		logger.Printf("sonic: bootstrap failed: %v", err)
		return 2
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Printf("sonic: received %s, shutting down", sig)
		if err := sys.Shutdown(5 * time.Second); err != nil {
			logger.Printf("sonic: shutdown error: %v", err)
			return 2
		}
		return 130
	case err := <-waitChan(sys):
		if err != nil {
			logger.Printf("sonic: listener stopped: %v", err)
			return 2
		}
		return 0
	}
}

// waitChan adapts System.Wait into a channel so run can select between
// it and the signal channel without blocking either.
func waitChan(sys *system.System) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- sys.Wait() }()
	return ch
}
