// Copyright 2025 RetailNext, Inc.
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

package dbdump

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"librarybackup/bucket"
	"librarybackup/unixtime"
)

func putDump(t *testing.T, client *bucket.Memory, at unixtime.Seconds) string {
	t.Helper()
	key := bucket.DatabaseDumpKey(at, "v1")
	if err := client.Put(context.Background(), key, bytes.NewReader([]byte("dump"))); err != nil {
		t.Fatal(err)
	}
	return key
}

func TestRotateKeepsNewest(t *testing.T) {
	ctx := context.Background()
	client := bucket.NewMemory()

	oldest := putDump(t, client, unixtime.Seconds(1000))
	middle := putDump(t, client, unixtime.Seconds(2000))
	newest := putDump(t, client, unixtime.Seconds(3000))
	// Non-dump objects under the prefix are never rotation candidates.
	if err := client.Put(ctx, bucket.DatabasePrefix+"README", bytes.NewReader([]byte("x"))); err != nil {
		t.Fatal(err)
	}

	if err := Rotate(ctx, client, 2); err != nil {
		t.Fatal(err)
	}

	keys := client.Keys()
	want := map[string]bool{middle: true, newest: true}
	want[bucket.DatabasePrefix+"README"] = true
	if len(keys) != len(want) {
		t.Fatalf("unexpected keys after rotation: %v", keys)
	}
	for _, key := range keys {
		if !want[key] {
			t.Fatalf("unexpected survivor %s (oldest was %s)", key, oldest)
		}
	}
}

func TestRotateNoopWhenUnderRetention(t *testing.T) {
	ctx := context.Background()
	client := bucket.NewMemory()
	putDump(t, client, unixtime.Seconds(1000))
	putDump(t, client, unixtime.Seconds(2000))

	if err := Rotate(ctx, client, 5); err != nil {
		t.Fatal(err)
	}
	if client.Len() != 2 {
		t.Fatalf("rotation deleted within retention: %v", client.Keys())
	}
}

func TestLatestDumpKey(t *testing.T) {
	ctx := context.Background()
	client := bucket.NewMemory()

	if _, found, err := LatestDumpKey(ctx, client); err != nil || found {
		t.Fatalf("empty bucket: found=%v err=%v", found, err)
	}

	putDump(t, client, unixtime.Seconds(1000))
	newest := putDump(t, client, unixtime.Seconds(2000))
	key, found, err := LatestDumpKey(ctx, client)
	if err != nil || !found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if key != newest {
		t.Fatalf("expected %s, got %s", newest, key)
	}
}

func TestLoadConnectionConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.yaml")
	content := "host: db.example.com\nport: 5433\ndatabase: photos\nuser: app\npassword: hunter2\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConnectionConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "db.example.com" || cfg.Port != 5433 || cfg.Database != "photos" || cfg.User != "app" || cfg.Password != "hunter2" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConnectionConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.yaml")
	if err := os.WriteFile(path, []byte("database: photos\nuser: app\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DB_HOST", "override.example.com")
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := LoadConnectionConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "override.example.com" || cfg.Password != "secret" {
		t.Fatalf("environment did not override file: %+v", cfg)
	}
	if cfg.Port != 5432 {
		t.Fatalf("expected default port, got %d", cfg.Port)
	}
}

func TestLoadConnectionConfigRequiresDatabase(t *testing.T) {
	t.Setenv("DB_DATABASE", "")
	t.Setenv("DB_USER", "")
	if _, err := LoadConnectionConfig(""); err == nil {
		t.Fatal("expected validation error for missing database")
	}
}
