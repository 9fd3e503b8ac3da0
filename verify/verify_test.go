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

package verify

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"librarybackup/bucket"
	"librarybackup/digest"
	"librarybackup/manifest"
	"librarybackup/retrypolicy"
)

func withFastBudget(t *testing.T) {
	t.Helper()
	saved := downloadBudget
	downloadBudget = retrypolicy.Budget{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Growth:       1,
	}
	t.Cleanup(func() {
		downloadBudget = saved
	})
}

func seedEntry(t *testing.T, client *bucket.Memory, store *manifest.Store, path, content string) {
	t.Helper()
	ctx := context.Background()
	d, err := digest.ForReader(ctx, strings.NewReader(content), digest.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Put(ctx, bucket.KeyForPath(path), bytes.NewReader([]byte(content))); err != nil {
		t.Fatal(err)
	}
	store.Upsert(manifest.Entry{Path: path, Digest: d, Size: int64(len(content))})
}

func newSeededStore(t *testing.T, client *bucket.Memory) *manifest.Store {
	t.Helper()
	store := manifest.NewStore(filepath.Join(t.TempDir(), "manifest.db"), client)
	store.Load(context.Background())
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestSampleAllHealthy(t *testing.T) {
	client := bucket.NewMemory()
	store := newSeededStore(t, client)
	for i := 0; i < 10; i++ {
		seedEntry(t, client, store, fmt.Sprintf("/file-%02d.jpg", i), fmt.Sprintf("content %d", i))
	}

	report, err := Sample(context.Background(), client, store, 0, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	if report.Total != 10 || report.Sampled != 10 || report.Verified != 10 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Err() != nil {
		t.Fatal(report.Err())
	}
}

func TestSampleBoundedBySampleSize(t *testing.T) {
	client := bucket.NewMemory()
	store := newSeededStore(t, client)
	for i := 0; i < 20; i++ {
		seedEntry(t, client, store, fmt.Sprintf("/file-%02d.jpg", i), fmt.Sprintf("content %d", i))
	}

	report, err := Sample(context.Background(), client, store, 5, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	if report.Total != 20 || report.Sampled != 5 || report.Verified != 5 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestSampleIsReproducible(t *testing.T) {
	client := bucket.NewMemory()
	store := newSeededStore(t, client)
	for i := 0; i < 20; i++ {
		seedEntry(t, client, store, fmt.Sprintf("/file-%02d.jpg", i), fmt.Sprintf("content %d", i))
	}

	first, _, err := reservoir(store, 5, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := reservoir(store, 5, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("sample sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Path != second[i].Path {
			t.Fatalf("samples differ at %d: %s vs %s", i, first[i].Path, second[i].Path)
		}
	}
}

func TestSampleDetectsCorruption(t *testing.T) {
	withFastBudget(t)
	ctx := context.Background()
	client := bucket.NewMemory()
	store := newSeededStore(t, client)
	seedEntry(t, client, store, "/good.jpg", "content a")
	seedEntry(t, client, store, "/corrupt.jpg", "content b")
	seedEntry(t, client, store, "/missing.jpg", "content c")
	seedEntry(t, client, store, "/truncated.jpg", "content d")

	// Same size, different bytes.
	if err := client.Put(ctx, bucket.KeyForPath("/corrupt.jpg"), bytes.NewReader([]byte("content X"))); err != nil {
		t.Fatal(err)
	}
	if err := client.Delete(ctx, bucket.KeyForPath("/missing.jpg")); err != nil {
		t.Fatal(err)
	}
	if err := client.Put(ctx, bucket.KeyForPath("/truncated.jpg"), bytes.NewReader([]byte("con"))); err != nil {
		t.Fatal(err)
	}

	report, err := Sample(ctx, client, store, 0, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	if report.Verified != 1 || len(report.Mismatches) != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Err() == nil {
		t.Fatal("expected verification failure")
	}

	byPath := make(map[string]string, len(report.Mismatches))
	for _, m := range report.Mismatches {
		byPath[m.Path] = m.Reason
	}
	if _, ok := byPath["/corrupt.jpg"]; !ok {
		t.Fatalf("corruption not detected: %v", byPath)
	}
	if _, ok := byPath["/missing.jpg"]; !ok {
		t.Fatalf("missing object not detected: %v", byPath)
	}
	if !strings.Contains(byPath["/truncated.jpg"], "size") {
		t.Fatalf("truncation not reported as size mismatch: %v", byPath)
	}
}
