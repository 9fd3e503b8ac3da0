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
	"context"
	"io"
	"os"
)

type Object struct {
	Key  string
	Size int64
}

// Client is a remote object store. Implementations are safe for concurrent
// use; calls are stateless and callers wrap them in retry budgets.
type Client interface {
	// Ping verifies the bucket is reachable. Called once at startup.
	Ping(ctx context.Context) error

	// Exists reports whether the object exists, and its size when it does.
	Exists(ctx context.Context, key string) (int64, bool, error)

	PutFile(ctx context.Context, key string, localPath string) error
	Put(ctx context.Context, key string, body io.Reader) error

	Download(ctx context.Context, key string, file *os.File) error

	List(ctx context.Context, prefix string) ([]Object, error)

	// Delete is only used by database dump rotation. The backup path never
	// deletes remote objects.
	Delete(ctx context.Context, key string) error

	// SetStorageClass transitions an existing object to the configured
	// storage class.
	SetStorageClass(ctx context.Context, key string) error
}

type Config struct {
	BucketName   string
	Region       string
	KeyPrefix    string
	StorageClass string
}
