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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsForUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sonic.cfg")
	if err := os.WriteFile(path, []byte("[channel]\ninet = \"0.0.0.0:1491\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Channel.Inet != "0.0.0.0:1491" {
		t.Fatalf("got %q, want overridden inet", cfg.Channel.Inet)
	}
	if cfg.KV.RetainWordObjects != Default.KV.RetainWordObjects {
		t.Fatalf("got %d, want default retain_word_objects", cfg.KV.RetainWordObjects)
	}
}

func TestLoadSubstitutesEnv(t *testing.T) {
	t.Setenv("SONIC_TEST_PASSWORD", "hunter2")
	path := filepath.Join(t.TempDir(), "sonic.cfg")
	body := "[channel]\nauth_password = \"${env.SONIC_TEST_PASSWORD}\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Channel.AuthPassword != "hunter2" {
		t.Fatalf("got %q, want substituted password", cfg.Channel.AuthPassword)
	}
}

func TestLoadFailsOnMissingEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sonic.cfg")
	body := "[channel]\nauth_password = \"${env.SONIC_TEST_DEFINITELY_UNSET}\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected Load to fail on an unset env reference")
	}
}
