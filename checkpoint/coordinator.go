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

// Package checkpoint pushes the manifest to the remote on a timer and on
// shutdown signals, so an interrupted run loses at most one interval of
// recorded progress.
package checkpoint

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"librarybackup/manifest"
)

// flusher is the part of manifest.Store the coordinator needs.
type flusher interface {
	FlushToRemote(ctx context.Context, withSnapshotCopy bool) error
}

type Coordinator struct {
	store    flusher
	interval time.Duration
}

var _ flusher = (*manifest.Store)(nil)

func New(store flusher, interval time.Duration) *Coordinator {
	return &Coordinator{
		store:    store,
		interval: interval,
	}
}

// Run flushes the manifest every interval until ctx is canceled. Flush
// failures are logged and the next tick tries again.
func (c *Coordinator) Run(ctx context.Context) {
	lgr := zap.S()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.store.FlushToRemote(ctx, false); err != nil {
				lgr.Errorw("checkpoint_flush_failed", "err", err)
			} else {
				lgr.Debugw("checkpoint_flushed")
			}
		}
	}
}

// NotifySignals installs a handler for SIGINT and SIGTERM that performs
// one best-effort flush and then calls cancel to begin shutdown. The
// returned stop function uninstalls the handler; a second signal while
// the flush runs terminates the process via the default disposition once
// stop has been called.
func (c *Coordinator) NotifySignals(cancel context.CancelFunc) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sig, ok := <-ch
		if !ok {
			return
		}
		zap.S().Infow("shutdown_signal", "signal", sig.String())
		c.handleShutdown(cancel)
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
		<-done
	}
}

// handleShutdown flushes under its own deadline: the run context is about
// to be canceled and must not abort the final checkpoint.
func (c *Coordinator) handleShutdown(cancel context.CancelFunc) {
	defer cancel()
	ctx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer flushCancel()
	if err := c.store.FlushToRemote(ctx, false); err != nil {
		zap.S().Errorw("shutdown_flush_failed", "err", err)
	}
}
