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

// Package restore materializes library files from the manifest into a
// local directory. Files already present with the recorded digest are
// left alone, so an interrupted restore can be re-run.
package restore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/retailnext/writefile"
	"go.uber.org/zap"

	"librarybackup/bucket"
	"librarybackup/digest"
	"librarybackup/manifest"
	"librarybackup/metrics"
	"librarybackup/retrypolicy"
)

var downloadBudget = retrypolicy.Download

type LibraryOptions struct {
	Target  string
	Prefix  string
	Workers int
}

type worker struct {
	ctx    context.Context
	client bucket.Client
	target writefile.Config

	limiter    chan struct{}
	wg         sync.WaitGroup
	fileErrors FileErrors
	lock       sync.Mutex
}

// Library restores every manifest entry under opts.Prefix into
// opts.Target. The returned error is a FileErrors value when some files
// failed and others succeeded.
func Library(ctx context.Context, client bucket.Client, store *manifest.Store, opts LibraryOptions) error {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	prefix := ""
	if opts.Prefix != "" {
		prefix = manifest.NormalizePath(opts.Prefix)
	}

	var entries []manifest.Entry
	err := store.ForEach(func(e manifest.Entry) error {
		if e.Archived {
			return nil
		}
		if prefix == "" || strings.HasPrefix(e.Path, prefix) {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no manifest entries match prefix %q", opts.Prefix)
	}

	w := worker{
		ctx:    ctx,
		client: client,
		target: writefile.Config{
			Directory:     opts.Target,
			DirectoryMode: 0755,
			FileMode:      0644,
		},
		limiter: make(chan struct{}, opts.Workers),
	}

	doneCh := ctx.Done()
	for _, entry := range entries {
		select {
		case <-doneCh:
		case w.limiter <- struct{}{}:
			w.wg.Add(1)
			go w.restoreFile(entry)
		}
		if ctx.Err() != nil {
			break
		}
	}
	w.wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if w.fileErrors != nil {
		return w.fileErrors
	}
	zap.S().Infow("restore_finished", "files", len(entries), "target", opts.Target)
	return nil
}

func (w *worker) restoreFile(entry manifest.Entry) {
	lgr := zap.S()
	var err error
	defer func() {
		if err != nil {
			metrics.Restore.DownloadErrors.Inc()
			lgr.Errorw("restore_file_error", "path", entry.Path, "err", err)
			w.lock.Lock()
			if w.fileErrors == nil {
				w.fileErrors = make(FileErrors)
			}
			w.fileErrors[entry.Path] = err
			w.lock.Unlock()
		}
		<-w.limiter
		w.wg.Done()
	}()

	name := strings.TrimPrefix(entry.Path, "/")
	if w.alreadyRestored(filepath.Join(w.target.Directory, name), entry) {
		return
	}

	err = w.target.WriteFile(name, func(file *os.File) error {
		start := time.Now()
		key := bucket.KeyForPath(entry.Path)
		downloadErr := downloadBudget.Do(w.ctx, "restore_download", func(ctx context.Context) error {
			return w.client.Download(ctx, key, file)
		})
		if downloadErr != nil {
			return downloadErr
		}
		metrics.Restore.DownloadFiles.Inc()
		metrics.Restore.DownloadBytes.Add(float64(entry.Size))
		metrics.Restore.DownloadSeconds.Add(time.Since(start).Seconds())

		if info, statErr := file.Stat(); statErr != nil {
			return statErr
		} else if info.Size() != entry.Size {
			return fmt.Errorf("downloaded %d bytes, manifest records %d", info.Size(), entry.Size)
		}
		return entry.Digest.Verify(w.ctx, file)
	})
	if err == nil {
		lgr.Infow("restored_file", "path", entry.Path)
	}
}

// alreadyRestored reports whether the target file exists with the
// recorded digest.
func (w *worker) alreadyRestored(path string, entry manifest.Entry) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() {
		_ = file.Close()
	}()
	info, err := file.Stat()
	if err != nil || info.Size() != entry.Size {
		return false
	}
	d, err := digest.ForReader(w.ctx, file, entry.Digest.Algorithm())
	if err != nil {
		return false
	}
	return entry.Digest.Equal(d)
}
