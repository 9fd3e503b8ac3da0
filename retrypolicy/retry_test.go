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

package retrypolicy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-test/deep"
)

func withFakeSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	original := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	t.Cleanup(func() {
		sleep = original
	})
	return &slept
}

func TestDoEventualSuccess(t *testing.T) {
	slept := withFakeSleep(t)
	budget := Budget{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 10 * time.Second, Growth: 2}

	failures := 2
	calls := 0
	err := budget.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls <= failures {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if diff := deep.Equal(*slept, []time.Duration{time.Second, 2 * time.Second}); diff != nil {
		t.Fatal(diff)
	}
}

func TestDoDelayGrowthCapped(t *testing.T) {
	slept := withFakeSleep(t)
	budget := Budget{MaxAttempts: 6, InitialDelay: time.Second, MaxDelay: 4 * time.Second, Growth: 2}

	lastErr := errors.New("always failing")
	err := budget.Do(context.Background(), "test", func(ctx context.Context) error {
		return lastErr
	})
	if err != lastErr {
		t.Fatalf("expected last error to propagate, got %v", err)
	}

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		4 * time.Second,
		4 * time.Second,
	}
	if diff := deep.Equal(*slept, want); diff != nil {
		t.Fatal(diff)
	}
}

func TestDoCancelNotRetried(t *testing.T) {
	withFakeSleep(t)
	budget := Budget{MaxAttempts: 10, InitialDelay: time.Second, MaxDelay: time.Minute, Growth: 2}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := budget.Do(ctx, "test", func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("failed while being cancelled")
	})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
