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

// Package dbdump streams pg_dump output through gzip into the bucket and
// rotates old dumps by retention count.
package dbdump

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"librarybackup/bucket"
	"librarybackup/retrypolicy"
	"librarybackup/unixtime"
)

var (
	uploadBudget = retrypolicy.Upload
	metaBudget   = retrypolicy.Meta
)

// Dump writes a compressed logical dump of the database to the bucket
// under a timestamped key and returns that key. The dump is staged in a
// temporary file so the upload can be retried without re-running pg_dump.
func Dump(ctx context.Context, client bucket.Client, cfg ConnectionConfig, version string) (string, error) {
	lgr := zap.S()

	staged, err := os.CreateTemp("", "dbdump-*.sql.gz")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = staged.Close()
		_ = os.Remove(staged.Name())
	}()

	if err := runDump(ctx, cfg, staged); err != nil {
		return "", err
	}
	info, err := staged.Stat()
	if err != nil {
		return "", err
	}

	key := bucket.DatabaseDumpKey(unixtime.Now(), version)
	err = uploadBudget.Do(ctx, "dump_upload", func(ctx context.Context) error {
		return client.PutFile(ctx, key, staged.Name())
	})
	if err != nil {
		return "", fmt.Errorf("upload database dump: %w", err)
	}
	err = metaBudget.Do(ctx, "dump_storage_class", func(ctx context.Context) error {
		return client.SetStorageClass(ctx, key)
	})
	if err != nil {
		lgr.Warnw("storage_class_failed", "key", key, "err", err)
	}

	lgr.Infow("database_dump_uploaded", "key", key, "bytes", info.Size())
	return key, nil
}

// runDump invokes pg_dump and gzips its stdout into out. Flags mirror a
// dump intended for clean re-import: drop-if-exists, no ownership or ACL
// statements.
func runDump(ctx context.Context, cfg ConnectionConfig, out *os.File) error {
	args := append([]string{
		"--no-owner",
		"--no-acl",
		"--clean",
		"--if-exists",
	}, cfg.commandArgs()...)
	cmd := exec.CommandContext(ctx, "pg_dump", args...)
	cmd.Env = cfg.env()
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start pg_dump: %w", err)
	}

	gz := gzip.NewWriter(out)
	_, copyErr := io.Copy(gz, stdout)
	closeErr := gz.Close()
	waitErr := cmd.Wait()

	if waitErr != nil {
		return fmt.Errorf("pg_dump: %w", waitErr)
	}
	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return closeErr
	}
	return out.Sync()
}
