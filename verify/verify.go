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

// Package verify spot-checks backup integrity by downloading a random
// sample of manifest entries and re-hashing them.
package verify

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	"go.uber.org/zap"

	"librarybackup/bucket"
	"librarybackup/manifest"
	"librarybackup/retrypolicy"
)

var downloadBudget = retrypolicy.Download

type Mismatch struct {
	Path   string
	Reason string
}

type Report struct {
	Total      int
	Sampled    int
	Verified   int
	Mismatches []Mismatch
}

func (r Report) Err() error {
	if len(r.Mismatches) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d sampled files failed verification", len(r.Mismatches), r.Sampled)
}

// Sample verifies up to sampleSize randomly chosen manifest entries
// against the bucket. A non-positive sampleSize verifies everything.
// The rng makes sampling reproducible for a fixed seed.
func Sample(ctx context.Context, client bucket.Client, store *manifest.Store, sampleSize int, rng *rand.Rand) (Report, error) {
	lgr := zap.S()

	sample, total, err := reservoir(store, sampleSize, rng)
	if err != nil {
		return Report{}, err
	}
	report := Report{
		Total:   total,
		Sampled: len(sample),
	}

	scratch, err := os.CreateTemp("", "verify-*.tmp")
	if err != nil {
		return report, err
	}
	defer func() {
		_ = scratch.Close()
		_ = os.Remove(scratch.Name())
	}()

	for _, entry := range sample {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if reason, ok := check(ctx, client, scratch, entry); !ok {
			lgr.Errorw("verify_mismatch", "path", entry.Path, "reason", reason)
			report.Mismatches = append(report.Mismatches, Mismatch{Path: entry.Path, Reason: reason})
		} else {
			report.Verified++
		}
	}

	lgr.Infow("verify_finished",
		"total", report.Total,
		"sampled", report.Sampled,
		"verified", report.Verified,
		"mismatches", len(report.Mismatches))
	return report, nil
}

// reservoir draws a uniform sample of up to k entries in one pass over
// the manifest.
func reservoir(store *manifest.Store, k int, rng *rand.Rand) ([]manifest.Entry, int, error) {
	var sample []manifest.Entry
	seen := 0
	err := store.ForEach(func(e manifest.Entry) error {
		seen++
		if k <= 0 || len(sample) < k {
			sample = append(sample, e)
			return nil
		}
		if j := rng.Intn(seen); j < k {
			sample[j] = e
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return sample, seen, nil
}

func check(ctx context.Context, client bucket.Client, scratch *os.File, entry manifest.Entry) (string, bool) {
	key := bucket.KeyForPath(entry.Path)

	// The scratch file is reused across entries; a stale tail from a
	// larger previous object would fail the size check.
	if err := scratch.Truncate(0); err != nil {
		return fmt.Sprintf("truncate: %s", err), false
	}

	err := downloadBudget.Do(ctx, "verify_download", func(ctx context.Context) error {
		return client.Download(ctx, key, scratch)
	})
	if err != nil {
		return fmt.Sprintf("download: %s", err), false
	}
	info, err := scratch.Stat()
	if err != nil {
		return fmt.Sprintf("stat: %s", err), false
	}
	if info.Size() != entry.Size {
		return fmt.Sprintf("size %d, manifest records %d", info.Size(), entry.Size), false
	}
	if err := entry.Digest.Verify(ctx, scratch); err != nil {
		return err.Error(), false
	}
	return "", true
}
