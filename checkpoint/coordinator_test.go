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

package checkpoint

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingFlusher struct {
	flushes atomic.Int64
	err     error
}

func (f *countingFlusher) FlushToRemote(ctx context.Context, withSnapshotCopy bool) error {
	if withSnapshotCopy {
		return errors.New("checkpoints must not write snapshot copies")
	}
	f.flushes.Add(1)
	return f.err
}

func TestRunFlushesPeriodically(t *testing.T) {
	f := &countingFlusher{}
	c := New(f, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for f.flushes.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 flushes, got %d", f.flushes.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestRunSurvivesFlushErrors(t *testing.T) {
	f := &countingFlusher{err: errors.New("remote unavailable")}
	c := New(f, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for f.flushes.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected the loop to keep flushing, got %d", f.flushes.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestHandleShutdownFlushesThenCancels(t *testing.T) {
	f := &countingFlusher{}
	c := New(f, time.Minute)

	var canceled atomic.Bool
	c.handleShutdown(func() {
		if f.flushes.Load() != 1 {
			t.Error("cancel must run after the flush")
		}
		canceled.Store(true)
	})
	if !canceled.Load() {
		t.Fatal("cancel was not called")
	}
}

func TestHandleShutdownCancelsDespiteFlushError(t *testing.T) {
	f := &countingFlusher{err: errors.New("remote unavailable")}
	c := New(f, time.Minute)

	var canceled atomic.Bool
	c.handleShutdown(func() {
		canceled.Store(true)
	})
	if !canceled.Load() {
		t.Fatal("cancel was not called")
	}
}

func TestNotifySignalsStopIsIdempotentlySafe(t *testing.T) {
	f := &countingFlusher{}
	c := New(f, time.Minute)

	stop := c.NotifySignals(func() {
		t.Error("cancel must not run without a signal")
	})
	stop()
	if f.flushes.Load() != 0 {
		t.Fatalf("no signal arrived but %d flushes ran", f.flushes.Load())
	}
}
