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

package manifest

import (
	"context"
	"os"
	"sync"

	"github.com/mailru/easyjson"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"librarybackup/bucket"
	"librarybackup/metrics"
	"librarybackup/retrypolicy"
	"librarybackup/unixtime"
)

const schemaVersion = "2"

var (
	filesBucket   = []byte("files")
	digestsBucket = []byte("digests")
	metaBucket    = []byte("meta")
)

const (
	metaLastBackup    = "last_backup"
	metaSourceVersion = "source_version"
	metaSchemaVersion = "schema_version"
)

// Test code swaps these for millisecond budgets so failure-path tests do
// not sleep through the production backoff schedule.
var (
	uploadBudget   = retrypolicy.Upload
	metaBudget     = retrypolicy.Meta
	downloadBudget = retrypolicy.Download
)

// Store is the durable index of previously backed-up files. One instance
// per process; all mutation is serialized by a single exclusive lock.
// Upserts stay pending in memory until Commit writes them in one bbolt
// transaction, so the staged file on disk is always a fully-consistent
// set of entries.
type Store struct {
	client    bucket.Client
	localPath string

	mu      sync.Mutex
	db      *bbolt.DB
	pending map[string]Entry
	count   int
}

func NewStore(localPath string, client bucket.Client) *Store {
	return &Store{
		client:    client,
		localPath: localPath,
		pending:   make(map[string]Entry),
	}
}

// Load fetches the remote snapshot and opens it as the active index.
// On absence or any fetch/open error it starts empty; Load never fails
// the run.
func (s *Store) Load(ctx context.Context) bool {
	lgr := zap.S()
	s.mu.Lock()
	defer s.mu.Unlock()

	found := s.fetchRemoteLocked(ctx)
	if !found {
		// Any stale local staging file is from a previous process; the
		// remote snapshot is authoritative.
		if err := os.Remove(s.localPath); err != nil && !os.IsNotExist(err) {
			lgr.Warnw("manifest_stage_remove_error", "path", s.localPath, "err", err)
		}
	}

	if err := s.openLocked(); err != nil {
		lgr.Warnw("manifest_open_error", "path", s.localPath, "err", err)
		if removeErr := os.Remove(s.localPath); removeErr != nil {
			lgr.Errorw("manifest_stage_remove_error", "path", s.localPath, "err", removeErr)
		}
		found = false
		if err := s.openLocked(); err != nil {
			lgr.Panicw("manifest_open_fresh_error", "path", s.localPath, "err", err)
		}
	}

	if found {
		lgr.Infow("manifest_loaded", "entries", s.count)
	} else {
		lgr.Infow("manifest_fresh")
	}
	return found
}

func (s *Store) fetchRemoteLocked(ctx context.Context) bool {
	lgr := zap.S()

	var size int64
	var exists bool
	err := metaBudget.Do(ctx, "manifest_head", func(ctx context.Context) error {
		var headErr error
		size, exists, headErr = s.client.Exists(ctx, bucket.ManifestKey)
		return headErr
	})
	if err != nil {
		lgr.Warnw("manifest_head_error", "err", err)
		return false
	}
	if !exists {
		return false
	}

	file, err := os.Create(s.localPath)
	if err != nil {
		lgr.Warnw("manifest_stage_create_error", "path", s.localPath, "err", err)
		return false
	}
	defer func() {
		_ = file.Close()
	}()

	err = downloadBudget.Do(ctx, "manifest_download", func(ctx context.Context) error {
		return s.client.Download(ctx, bucket.ManifestKey, file)
	})
	if err != nil {
		lgr.Warnw("manifest_download_error", "size", size, "err", err)
		return false
	}
	return true
}

func (s *Store) openLocked() error {
	db, err := bbolt.Open(s.localPath, 0644, nil)
	if err != nil {
		return err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{filesBucket, digestsBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return err
	}

	var count int
	var storedSchema string
	err = db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(filesBucket).Stats().KeyN
		if v := tx.Bucket(metaBucket).Get([]byte(metaSchemaVersion)); v != nil {
			storedSchema = string(v)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return err
	}
	if storedSchema != "" && storedSchema != schemaVersion {
		zap.S().Warnw("manifest_schema_version_mismatch", "stored", storedSchema, "expected", schemaVersion)
	}

	s.db = db
	s.count = count
	metrics.Manifest.Entries.Set(float64(count))
	return nil
}

// Lookup is a point query by normalized path.
func (s *Store) Lookup(path string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.pending[path]; ok {
		return e, true, nil
	}

	var entry Entry
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(filesBucket).Get([]byte(path))
		if value == nil {
			return nil
		}
		if err := easyjson.Unmarshal(value, &entry); err != nil {
			return err
		}
		entry.Path = path
		found = true
		return nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	return entry, found, nil
}

// Upsert stages an insert-or-replace. It does not durably commit;
// commits are batched.
func (s *Store) Upsert(e Entry) {
	e.Path = NormalizePath(e.Path)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[e.Path] = e
}

// Commit writes all pending mutations in one transaction.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked()
}

func (s *Store) commitLocked() error {
	if len(s.pending) == 0 {
		return nil
	}
	var added int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		added = 0
		files := tx.Bucket(filesBucket)
		digests := tx.Bucket(digestsBucket)
		for path, e := range s.pending {
			key := []byte(path)
			if old := files.Get(key); old != nil {
				var oldEntry Entry
				if err := easyjson.Unmarshal(old, &oldEntry); err == nil {
					if err := digests.Delete(indexKey(oldEntry, path)); err != nil {
						return err
					}
				}
			} else {
				added++
			}
			value, err := easyjson.Marshal(e)
			if err != nil {
				return err
			}
			if err := files.Put(key, value); err != nil {
				return err
			}
			if err := digests.Put(indexKey(e, path), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.count += added
	s.pending = make(map[string]Entry)
	metrics.Manifest.Commits.Inc()
	metrics.Manifest.Entries.Set(float64(s.count))
	return nil
}

// The secondary index supports dedup-by-hash lookups; the upload decision
// does not consult it, but each (digest, path) pair must stay unique.
func indexKey(e Entry, path string) []byte {
	d := e.Digest.String()
	key := make([]byte, 0, len(d)+1+len(path))
	key = append(key, d...)
	key = append(key, 0)
	key = append(key, path...)
	return key
}

// LookupByDigest returns the paths of all entries with the given digest.
func (s *Store) LookupByDigest(d string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := append([]byte(d), 0)
	var paths []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(digestsBucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && len(k) > len(prefix) && string(k[:len(prefix)]) == string(prefix); k, _ = c.Next() {
			paths = append(paths, string(k[len(prefix):]))
		}
		return nil
	})
	return paths, err
}

// snapshot commits pending mutations and writes a consistent copy of the
// staged db to a temporary file. The lock is held only for the local
// snapshot, never for the upload.
func (s *Store) snapshot() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.commitLocked(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp("", "manifest-flush-*.db")
	if err != nil {
		return "", err
	}
	err = s.db.View(func(tx *bbolt.Tx) error {
		_, writeErr := tx.WriteTo(tmp)
		return writeErr
	})
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// FlushToRemote commits, then uploads the staged index to the well-known
// remote object. With withSnapshotCopy it also writes a timestamped
// immutable copy for point-in-time recovery.
func (s *Store) FlushToRemote(ctx context.Context, withSnapshotCopy bool) error {
	lgr := zap.S()
	tmp, err := s.snapshot()
	if err != nil {
		metrics.Manifest.FlushErrors.Inc()
		return err
	}
	defer func() {
		_ = os.Remove(tmp)
	}()

	err = uploadBudget.Do(ctx, "manifest_upload", func(ctx context.Context) error {
		return s.client.PutFile(ctx, bucket.ManifestKey, tmp)
	})
	if err != nil {
		metrics.Manifest.FlushErrors.Inc()
		return err
	}
	s.setStorageClass(ctx, bucket.ManifestKey)

	if withSnapshotCopy {
		snapshotKey := bucket.ManifestSnapshotKey(unixtime.Now())
		err = uploadBudget.Do(ctx, "manifest_snapshot_upload", func(ctx context.Context) error {
			return s.client.PutFile(ctx, snapshotKey, tmp)
		})
		if err != nil {
			metrics.Manifest.FlushErrors.Inc()
			return err
		}
		s.setStorageClass(ctx, snapshotKey)
		lgr.Infow("manifest_snapshot_saved", "key", snapshotKey)
	}

	metrics.Manifest.Flushes.Inc()
	return nil
}

// Storage class is cosmetic for the manifest; failures are logged, not
// propagated.
func (s *Store) setStorageClass(ctx context.Context, key string) {
	err := metaBudget.Do(ctx, "manifest_storage_class", func(ctx context.Context) error {
		return s.client.SetStorageClass(ctx, key)
	})
	if err != nil {
		zap.S().Warnw("manifest_storage_class_error", "key", key, "err", err)
	}
}

// Save updates metadata, commits, and flushes with a snapshot copy. This
// is the final form of persistence at run end. If the full save fails,
// it falls back to flushing just the well-known key: losing the
// point-in-time copy must not lose the index itself.
func (s *Store) Save(ctx context.Context, sourceVersion string) error {
	s.mu.Lock()
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if err := meta.Put([]byte(metaLastBackup), []byte(unixtime.Now().String())); err != nil {
			return err
		}
		if err := meta.Put([]byte(metaSourceVersion), []byte(sourceVersion)); err != nil {
			return err
		}
		return meta.Put([]byte(metaSchemaVersion), []byte(schemaVersion))
	})
	if err == nil {
		err = s.commitLocked()
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.FlushToRemote(ctx, true); err != nil {
		zap.S().Errorw("manifest_save_error", "err", err)
		return s.FlushToRemote(ctx, false)
	}
	return nil
}

// Count includes pending upserts, counting a pending replacement of an
// already-committed row once.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.count
	if len(s.pending) > 0 && s.db != nil {
		_ = s.db.View(func(tx *bbolt.Tx) error {
			files := tx.Bucket(filesBucket)
			for path := range s.pending {
				if files.Get([]byte(path)) == nil {
					count++
				}
			}
			return nil
		})
	}
	return count
}

func (s *Store) LastBackup() (unixtime.Seconds, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var at unixtime.Seconds
	var found bool
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(metaBucket).Get([]byte(metaLastBackup)); v != nil {
			if err := at.ParseString(string(v)); err == nil {
				found = true
			}
		}
		return nil
	})
	return at, found
}

// ForEach commits pending mutations, then visits every entry in path
// order. The lock is held for the whole iteration.
func (s *Store) ForEach(fn func(Entry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.commitLocked(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(filesBucket).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := easyjson.Unmarshal(v, &entry); err != nil {
				return err
			}
			entry.Path = string(k)
			return fn(entry)
		})
	})
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.commitLocked()
	if closeErr := s.db.Close(); err == nil {
		err = closeErr
	}
	s.db = nil
	return err
}
