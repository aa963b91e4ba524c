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


package core

import (
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidChunkDocument indicates a ChunkDocument failed validation.
	ErrInvalidChunkDocument = errors.New("invalid chunk document")

	// ErrEmptyID indicates the ID field is empty.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrEmptyContent indicates the Text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrExtractionTooShort indicates extracted text fell below the minimum
	// length. Items failing this way are counted, not reported as errors.
	ErrExtractionTooShort = errors.New("extracted content too short")
)

// FetchError is returned when an HTTP fetch fails after all retries.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is returned when upstream JSON, XML or HTML cannot be parsed.
// It is fatal for the single item, never for the run.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CacheCorruptError is returned when a cache file exists but cannot be decoded.
// Callers must treat it as fatal for the whole run.
type CacheCorruptError struct {
	Path string
	Err  error
}

func (e *CacheCorruptError) Error() string {
	return fmt.Sprintf("cache file %s is corrupt: %v", e.Path, e.Err)
}

func (e *CacheCorruptError) Unwrap() error { return e.Err }

// WorkerFailure is returned when a shard worker exits non-zero or produces
// output that cannot be parsed. The shard file is kept for the next run.
type WorkerFailure struct {
	Shard    string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *WorkerFailure) Error() string {
	msg := fmt.Sprintf("worker for shard %s failed (exit %d)", e.Shard, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *WorkerFailure) Unwrap() error { return e.Err }
