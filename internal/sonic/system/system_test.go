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

package system

import (
	"bufio"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sonic/internal/sonic/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default
	cfg.Channel.Inet = "127.0.0.1:0"
	cfg.Store.KVPath = filepath.Join(base, "kv")
	cfg.Store.FSTPath = filepath.Join(base, "fst")
	return cfg
}

func TestBootstrapThenShutdown(t *testing.T) {
	cfg := testConfig(t)
	// Bootstrap immediately dials net.Listen with cfg.Channel.Inet; since
	// port 0 resolves to an OS-assigned ephemeral port we can't recover
	// here without a listener handle, so this test only exercises that
	// Bootstrap/Shutdown is safe to run back to back.
	sys, err := Bootstrap(cfg, nil)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := sys.Shutdown(50 * time.Millisecond); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestBootstrapServesRealConnections(t *testing.T) {
	cfg := testConfig(t)
	cfg.Channel.Inet = "127.0.0.1:17491"
	sys, err := Bootstrap(cfg, nil)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	defer sys.Shutdown(50 * time.Millisecond)

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", cfg.Channel.Inet)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	banner, err := r.ReadString('\n')
	if err != nil || !strings.HasPrefix(banner, "CONNECTED <sonic-server v") {
		t.Fatalf("got %q, %v", banner, err)
	}

	conn.Write([]byte("PING\n"))
	reply, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(reply) != "PONG" {
		t.Fatalf("got %q, %v", reply, err)
	}
}
