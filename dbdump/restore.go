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
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"librarybackup/bucket"
	"librarybackup/retrypolicy"
)

var downloadBudget = retrypolicy.Download

// LatestDumpKey returns the newest dump key, or ok=false when the bucket
// holds no dumps.
func LatestDumpKey(ctx context.Context, client bucket.Client) (string, bool, error) {
	var objects []bucket.Object
	err := metaBudget.Do(ctx, "dump_list", func(ctx context.Context) error {
		var listErr error
		objects, listErr = client.List(ctx, bucket.DatabasePrefix)
		return listErr
	})
	if err != nil {
		return "", false, err
	}
	var dumps []string
	for _, o := range objects {
		if strings.HasSuffix(o.Key, bucket.DumpSuffix) {
			dumps = append(dumps, o.Key)
		}
	}
	if len(dumps) == 0 {
		return "", false, nil
	}
	sort.Strings(dumps)
	return dumps[len(dumps)-1], true, nil
}

// Restore downloads the dump at key (the latest when key is empty) and
// feeds it, decompressed, to psql.
func Restore(ctx context.Context, client bucket.Client, cfg ConnectionConfig, key string) error {
	lgr := zap.S()

	if key == "" {
		latest, found, err := LatestDumpKey(ctx, client)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no database dumps found under %s", bucket.DatabasePrefix)
		}
		key = latest
	}

	staged, err := os.CreateTemp("", "dbrestore-*.sql.gz")
	if err != nil {
		return err
	}
	defer func() {
		_ = staged.Close()
		_ = os.Remove(staged.Name())
	}()

	err = downloadBudget.Do(ctx, "dump_download", func(ctx context.Context) error {
		return client.Download(ctx, key, staged)
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	if _, err := staged.Seek(0, io.SeekStart); err != nil {
		return err
	}

	gz, err := gzip.NewReader(staged)
	if err != nil {
		return fmt.Errorf("dump %s is not gzip: %w", key, err)
	}
	defer func() {
		_ = gz.Close()
	}()

	cmd := exec.CommandContext(ctx, "psql", append(cfg.commandArgs(), "--no-psqlrc", "--quiet")...)
	cmd.Env = cfg.env()
	cmd.Stdin = gz
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("psql: %w", err)
	}

	lgr.Infow("database_restored", "key", key)
	return nil
}
