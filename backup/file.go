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
	"fmt"
	"io/fs"
	"os"
	"time"
)

// File captures a file's identity at discovery time. Open refuses to
// proceed if the file changed between discovery and processing, so a
// racing writer cannot make the pipeline record state it never observed.
type File struct {
	name    string
	size    int64
	modTime time.Time
}

func NewFileFromInfo(name string, info fs.FileInfo) File {
	return File{
		name:    name,
		size:    info.Size(),
		modTime: info.ModTime(),
	}
}

func (f File) Name() string {
	return f.name
}

func (f File) Size() int64 {
	return f.size
}

func (f File) Open() (*os.File, error) {
	file, err := os.Open(f.name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.Size() != f.size || !info.ModTime().Equal(f.modTime) {
		_ = file.Close()
		return nil, ChangedSinceDiscovery{name: f.name}
	}
	return file, nil
}

type ChangedSinceDiscovery struct {
	name string
}

func (e ChangedSinceDiscovery) Error() string {
	return fmt.Sprintf("%s changed since discovery", e.name)
}
