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

package digest

import (
	"context"
	"io"
	"os"
	"time"

	"librarybackup/metrics"
)

const chunkSize = 64 * 1024
const checkContextBytesInterval = 1 << 24

// ForFile streams the file through the algorithm's hash in fixed-size
// chunks. The whole file is never held in memory.
func ForFile(ctx context.Context, path string, algorithm Algorithm) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer func() {
		_ = file.Close()
	}()
	return ForReader(ctx, file, algorithm)
}

func ForReader(ctx context.Context, reader io.Reader, algorithm Algorithm) (Digest, error) {
	t0 := time.Now()
	h := algorithm.newHash()

	buf := make([]byte, chunkSize)
	var doneCh <-chan struct{}
	var lastCheckedDoneCh int64
	var size int64
	for {
		bytesRead, err := reader.Read(buf)
		if bytesRead > 0 {
			if _, writeErr := h.Write(buf[0:bytesRead]); writeErr != nil {
				panic(writeErr)
			}
			size += int64(bytesRead)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Digest{}, err
		}

		if size-lastCheckedDoneCh > checkContextBytesInterval {
			if doneCh == nil {
				doneCh = ctx.Done()
			}
			select {
			case <-doneCh:
				return Digest{}, ctx.Err()
			default:
				lastCheckedDoneCh = size
			}
		}
	}

	metrics.Digest.FilesTotal.Inc()
	metrics.Digest.BytesTotal.Add(float64(size))
	metrics.Digest.SecondsTotal.Add(time.Since(t0).Seconds())

	return Digest{algorithm: algorithm, sum: h.Sum(nil)}, nil
}

// Verify re-hashes reader with the digest's own algorithm and returns a
// MismatchError if the content differs.
func (d Digest) Verify(ctx context.Context, reader io.ReadSeeker) error {
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return err
	}
	actual, err := ForReader(ctx, reader, d.algorithm)
	if err != nil {
		return err
	}
	if !d.Equal(actual) {
		return MismatchError{expected: d, actual: actual}
	}
	return nil
}
