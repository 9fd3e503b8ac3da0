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
	"github.com/alecthomas/kingpin/v2"

	"librarybackup/digest"
)

var (
	Cmd = kingpin.Command("backup", "")

	_ = Cmd.Command("run", "Back up library files and the database, then save the manifest.")
	_ = Cmd.Command("library", "Back up library files only.")
	_ = Cmd.Command("database", "Back up the database only.")

	sourceRoot     = Cmd.Flag("source", "Library root to back up.").Envar("LIBRARY_PATH").String()
	sourceVersion  = Cmd.Flag("source-version", "Source version tag recorded in the manifest.").Envar("SOURCE_VERSION").Default("unknown").String()
	workers        = Cmd.Flag("workers", "Upload worker count.").Envar("BACKUP_WORKERS").Default("4").Int()
	queueSize      = Cmd.Flag("queue-size", "Capacity of the bounded discovery queue.").Envar("BACKUP_QUEUE_SIZE").Default("256").Int()
	maxOutstanding = Cmd.Flag("max-outstanding", "Ceiling on completed-but-undrained tasks.").Envar("BACKUP_MAX_OUTSTANDING").Default("64").Int()
	commitEvery    = Cmd.Flag("commit-every", "Checkpoint the manifest every this many uploads.").Envar("BACKUP_COMMIT_EVERY").Default("100").Int()
)

type Config struct {
	SourceRoot     string
	SourceVersion  string
	Workers        int
	QueueSize      int
	MaxOutstanding int
	CommitEvery    int
	Algorithm      digest.Algorithm
}

func ConfigFromFlags(algorithm digest.Algorithm) Config {
	return Config{
		SourceRoot:     *sourceRoot,
		SourceVersion:  *sourceVersion,
		Workers:        *workers,
		QueueSize:      *queueSize,
		MaxOutstanding: *maxOutstanding,
		CommitEvery:    *commitEvery,
		Algorithm:      algorithm,
	}
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxOutstanding <= 0 {
		c.MaxOutstanding = 64
	}
	if c.CommitEvery <= 0 {
		c.CommitEvery = 100
	}
	if c.Algorithm == "" {
		c.Algorithm = digest.SHA256
	}
}
