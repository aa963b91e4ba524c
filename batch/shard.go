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


package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"

	"github.com/poiesic/docingest/core"
)

var shardPattern = regexp.MustCompile(`^batch-(\d+)\.jsonl$`)

// ShardName returns the file name of shard num.
func ShardName(num int) string {
	return fmt.Sprintf("batch-%04d.jsonl", num)
}

// ShardNumber parses the number out of a shard path.
func ShardNumber(path string) (int, error) {
	m := shardPattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidShardName, path)
	}
	return strconv.Atoi(m[1])
}

// Write stores recs as shard num in dir and returns its path. Nothing is
// written for zero records and the returned path is empty. The file appears
// atomically, so a shard on disk is always complete.
func Write(dir string, num int, recs []core.ShardRecord) (string, error) {
	if len(recs) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create shard directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return "", fmt.Errorf("failed to encode shard record %s: %w", rec.URL, err)
		}
	}

	path := filepath.Join(dir, ShardName(num))
	tmp, err := os.CreateTemp(dir, "."+ShardName(num)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create shard file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write shard: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close shard: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to publish shard: %w", err)
	}
	return path, nil
}

// List returns the shard files in dir ordered by shard number. A missing
// directory has no shards.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list shards: %w", err)
	}

	type numbered struct {
		num  int
		path string
	}
	var shards []numbered
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		num, err := ShardNumber(e.Name())
		if err != nil {
			continue
		}
		shards = append(shards, numbered{num, filepath.Join(dir, e.Name())})
	}
	slices.SortFunc(shards, func(a, b numbered) int { return a.num - b.num })

	paths := make([]string, len(shards))
	for i, s := range shards {
		paths[i] = s.path
	}
	return paths, nil
}

// NextShardNumber returns the number after the highest shard in dir.
func NextShardNumber(dir string) (int, error) {
	paths, err := List(dir)
	if err != nil || len(paths) == 0 {
		return 0, err
	}
	last, err := ShardNumber(paths[len(paths)-1])
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// Read loads every record of a shard. Lines that are not valid records
// are logged and skipped.
func Read(path string) ([]core.ShardRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shard: %w", err)
	}
	defer f.Close()

	var recs []core.ShardRecord
	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		line, err := r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var rec core.ShardRecord
			if jerr := json.Unmarshal(line, &rec); jerr != nil || rec.URL == "" {
				slog.Warn("skipping malformed shard line", "shard", path, "line", lineNo, "err", jerr)
			} else {
				recs = append(recs, rec)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read shard: %w", err)
		}
	}
	return recs, nil
}
