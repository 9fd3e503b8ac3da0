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
	"sort"
	"strings"

	"go.uber.org/zap"

	"librarybackup/bucket"
)

// Rotate deletes database dumps beyond the newest keep. Dump keys embed a
// lexicographically chronological timestamp, so a reverse key sort is a
// newest-first time sort. This is the only path in the program that
// deletes remote objects.
func Rotate(ctx context.Context, client bucket.Client, keep int) error {
	if keep < 1 {
		keep = 1
	}
	lgr := zap.S()

	var objects []bucket.Object
	err := metaBudget.Do(ctx, "dump_list", func(ctx context.Context) error {
		var listErr error
		objects, listErr = client.List(ctx, bucket.DatabasePrefix)
		return listErr
	})
	if err != nil {
		return err
	}

	var dumps []string
	for _, o := range objects {
		if strings.HasSuffix(o.Key, bucket.DumpSuffix) {
			dumps = append(dumps, o.Key)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dumps)))
	if len(dumps) <= keep {
		return nil
	}

	for _, key := range dumps[keep:] {
		err := metaBudget.Do(ctx, "dump_delete", func(ctx context.Context) error {
			return client.Delete(ctx, key)
		})
		if err != nil {
			return err
		}
		lgr.Infow("database_dump_rotated", "key", key)
	}
	return nil
}
