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

package backup

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"librarybackup/bucket"
	"librarybackup/manifest"
)

type processor struct {
	client bucket.Client
	store  *manifest.Store
	cfg    Config

	tasks   chan task
	results chan outcome

	discovered atomic.Int64

	// flushGate serializes async manifest flushes: at most one in flight,
	// newer requests are dropped while one runs.
	flushGate chan struct{}
	flushWG   sync.WaitGroup
}

// Do runs one backup pass over cfg.SourceRoot. Per-file failures are
// collected in the result, not returned as an error; err is reserved for
// conditions that prevented the pass from running at all.
func Do(ctx context.Context, client bucket.Client, store *manifest.Store, cfg Config) (RunResult, error) {
	cfg.applyDefaults()
	lgr := zap.S()

	info, err := os.Stat(cfg.SourceRoot)
	if err != nil {
		return RunResult{}, fmt.Errorf("source root: %w", err)
	}
	if !info.IsDir() {
		return RunResult{}, fmt.Errorf("source root %s is not a directory", cfg.SourceRoot)
	}

	p := &processor{
		client:    client,
		store:     store,
		cfg:       cfg,
		tasks:     make(chan task, cfg.QueueSize),
		results:   make(chan outcome, cfg.MaxOutstanding),
		flushGate: make(chan struct{}, 1),
	}

	go p.produce(ctx)

	var workers sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			p.work(ctx)
		}()
	}
	go func() {
		workers.Wait()
		close(p.results)
	}()

	var result RunResult
	sinceCommit := 0
	for o := range p.results {
		switch o.status {
		case statusUploaded:
			result.Uploaded++
			result.UploadedBytes += o.size
			sinceCommit++
			if sinceCommit >= cfg.CommitEvery {
				sinceCommit = 0
				if err := store.Commit(); err != nil {
					lgr.Errorw("manifest_commit_failed", "err", err)
				} else {
					p.flushAsync(ctx)
				}
			}
		case statusSkipped:
			result.Skipped++
		case statusFailed:
			result.Errors = append(result.Errors, o.err)
			lgr.Errorw("file_failed", "path", o.err.Path, "stage", o.err.Stage, "err", o.err.Message)
		}
		processed := result.Uploaded + result.Skipped + len(result.Errors)
		if processed%1000 == 0 {
			lgr.Infow("backup_progress",
				"discovered", p.discovered.Load(),
				"uploaded", result.Uploaded,
				"uploaded_bytes", result.UploadedBytes,
				"skipped", result.Skipped,
				"failed", len(result.Errors))
		}
	}
	p.flushWG.Wait()
	result.Discovered = int(p.discovered.Load())

	if err := store.Commit(); err != nil {
		return result, fmt.Errorf("final manifest commit: %w", err)
	}

	if len(result.Errors) > 0 {
		if report, reportErr := result.WriteErrorReport(); reportErr != nil {
			lgr.Errorw("error_report_failed", "err", reportErr)
		} else {
			lgr.Warnw("error_report_written", "path", report, "failed", len(result.Errors))
		}
	}

	lgr.Infow("backup_finished",
		"discovered", result.Discovered,
		"uploaded", result.Uploaded,
		"uploaded_bytes", result.UploadedBytes,
		"skipped", result.Skipped,
		"failed", len(result.Errors))

	return result, ctx.Err()
}

// flushAsync pushes the just-committed manifest to the remote without
// blocking the aggregation loop. If a flush is already in flight, this
// checkpoint is skipped; the next commit or the final Save covers it.
func (p *processor) flushAsync(ctx context.Context) {
	select {
	case p.flushGate <- struct{}{}:
	default:
		return
	}
	p.flushWG.Add(1)
	go func() {
		defer p.flushWG.Done()
		defer func() {
			<-p.flushGate
		}()
		if err := p.store.FlushToRemote(ctx, false); err != nil {
			zap.S().Errorw("manifest_flush_failed", "err", err)
		}
	}()
}
