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
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory Client for tests. Hooks allow fault injection
// ahead of the corresponding operation.
type Memory struct {
	mu             sync.Mutex
	objects        map[string][]byte
	putCounts      map[string]int
	storageClasses map[string]bool

	PutHook    func(key string) error
	ExistsHook func(key string) error
	GetHook    func(key string) error
}

func NewMemory() *Memory {
	return &Memory{
		objects:        make(map[string][]byte),
		putCounts:      make(map[string]int),
		storageClasses: make(map[string]bool),
	}
}

var _ Client = (*Memory)(nil)

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (int64, bool, error) {
	if m.ExistsHook != nil {
		if err := m.ExistsHook(key); err != nil {
			return 0, false, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return 0, false, nil
	}
	return int64(len(data)), true, nil
}

func (m *Memory) PutFile(ctx context.Context, key string, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()
	return m.Put(ctx, key, file)
}

func (m *Memory) Put(ctx context.Context, key string, body io.Reader) error {
	if m.PutHook != nil {
		if err := m.PutHook(key); err != nil {
			return err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.putCounts[key]++
	return nil
}

func (m *Memory) Download(ctx context.Context, key string, file *os.File) error {
	if m.GetHook != nil {
		if err := m.GetHook(key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	data, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return errors.New("object not found: " + key)
	}
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.WriteAt(data, 0); err != nil {
		return err
	}
	return nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Object
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			result = append(result, Object{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) SetStorageClass(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return errors.New("object not found: " + key)
	}
	m.storageClasses[key] = true
	return nil
}

// Test helpers.

func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func (m *Memory) PutCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putCounts[key]
}

func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
