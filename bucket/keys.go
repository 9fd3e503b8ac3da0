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

package bucket

import (
	"fmt"
	"strings"

	"librarybackup/unixtime"
)

const (
	ManifestKey    = "manifest.db"
	LibraryPrefix  = "library/"
	DatabasePrefix = "database/"
	DumpSuffix     = ".sql.gz"
)

// KeyForPath derives the object key for a manifest path. The key is never
// stored; it is always re-derived from the path.
func KeyForPath(path string) string {
	return LibraryPrefix + strings.TrimPrefix(path, "/")
}

func ManifestSnapshotKey(at unixtime.Seconds) string {
	return fmt.Sprintf("manifest-%s.db", at.Stamp())
}

func DatabaseDumpKey(at unixtime.Seconds, version string) string {
	return fmt.Sprintf("%s%s-%s%s", DatabasePrefix, at.Stamp(), version, DumpSuffix)
}
