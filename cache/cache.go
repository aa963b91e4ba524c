// Copyright 2025 Poiesic Systems
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


package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/poiesic/docingest/core"
)

// Entry is the change-detection record for one key.
// Entries are replaced wholesale, never merged field by field.
type Entry struct {
	Hash         string    `json:"hash"`
	LastUpdated  time.Time `json:"lastUpdated"`
	RemoteHash   string    `json:"remoteHash,omitempty"`
	LastModified string    `json:"lastmod,omitempty"`
}

// Cache maps a stable key to its entry.
type Cache map[string]Entry

// Clone returns a shallow copy of the cache.
func (c Cache) Clone() Cache {
	out := make(Cache, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Hash returns the content digest used for change detection.
func Hash(content string) string {
	return core.ContentHash(content)
}

// Load reads the cache file at path. A missing file yields an empty cache.
// Malformed content is reported as *core.CacheCorruptError and must not be
// silently reset by the caller.
func Load(path string) (Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Cache{}, nil
		}
		return nil, fmt.Errorf("failed to read cache %s: %w", path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return Cache{}, nil
	}

	c := Cache{}
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, &core.CacheCorruptError{Path: path, Err: err}
	}
	return c, nil
}

// Save writes the cache to path atomically. The data goes to a temporary
// file in the same directory which is synced and then renamed over path.
func Save(path string, c Cache) error {
	if c == nil {
		c = Cache{}
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace cache: %w", err)
	}
	return nil
}
