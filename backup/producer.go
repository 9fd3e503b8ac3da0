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
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"

	"librarybackup/manifest"
	"librarybackup/metrics"
)

// produce walks the source tree and emits one task per regular file, in
// traversal order. Sending on the bounded queue is the sole backpressure
// mechanism; closing it is the end-of-input signal. Traversal errors are
// logged and traversal continues, so consumers are never left blocked.
func (p *processor) produce(ctx context.Context) {
	lgr := zap.S()
	defer close(p.tasks)

	doneCh := ctx.Done()
	send := func(t task) error {
		select {
		case <-doneCh:
			return ctx.Err()
		case p.tasks <- t:
			return nil
		}
	}
	walkErr := filepath.WalkDir(p.cfg.SourceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries become per-file errors in the run result.
			lgr.Errorw("walk_error", "path", path, "err", err)
			return send(task{manifestPath: p.manifestPath(path), prospectErr: err, file: File{name: path}})
		}
		if !d.Type().IsRegular() {
			return nil
		}

		t := task{
			manifestPath: p.manifestPath(path),
		}
		if info, infoErr := d.Info(); infoErr != nil {
			// The file disappeared mid-walk; let a worker record it.
			t.prospectErr = infoErr
			t.file = File{name: path}
		} else {
			t.file = NewFileFromInfo(path, info)
		}

		p.discovered.Add(1)
		metrics.Pipeline.DiscoveredFiles.Inc()
		return send(t)
	})
	if walkErr != nil && walkErr != ctx.Err() {
		lgr.Errorw("walk_aborted", "root", p.cfg.SourceRoot, "err", walkErr)
	}
}

func (p *processor) manifestPath(path string) string {
	relPath, err := filepath.Rel(p.cfg.SourceRoot, path)
	if err != nil {
		return manifest.NormalizePath(path)
	}
	return manifest.NormalizePath(relPath)
}
