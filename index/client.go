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


package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/docingest/core"
)

const (
	// DefaultCollection is the collection documents are written to.
	DefaultCollection = "docs"

	// DefaultTopK is the number of results returned by a query.
	DefaultTopK = 3
)

// ErrEmbeddingMismatch is returned when the embedder returns a different
// number of vectors than texts it was given.
var ErrEmbeddingMismatch = errors.New("embedding count mismatch")

// Client is a vector index holding chunk documents.
type Client interface {
	// Embed returns the embedding of a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Upsert embeds and writes documents, replacing any with the same ID.
	// It returns the number of documents written. The call is all or
	// nothing from the caller's point of view: on error no cache entry
	// should be recorded for these documents.
	Upsert(ctx context.Context, docs []core.ChunkDocument) (int, error)

	// Query returns up to topK documents similar to text, best first.
	// Failures are logged and yield no results.
	Query(ctx context.Context, text string, topK int) []core.QueryResult

	// Stats reports the size of the collection.
	Stats(ctx context.Context) (core.Stats, error)

	// Reset deletes the collection and everything in it.
	Reset(ctx context.Context) error

	// Close releases resources held by the client.
	Close() error
}

// Batches splits docs into consecutive slices of at most size documents.
// A size below 1 yields a single batch.
func Batches(docs []core.ChunkDocument, size int) [][]core.ChunkDocument {
	if len(docs) == 0 {
		return nil
	}
	if size < 1 {
		size = len(docs)
	}
	batches := make([][]core.ChunkDocument, 0, (len(docs)+size-1)/size)
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		batches = append(batches, docs[start:end])
	}
	return batches
}

// EmbedDocuments validates docs and embeds their texts in one call.
// Vectors are normalized to unit length.
func EmbedDocuments(ctx context.Context, embed func(context.Context, []string) ([][]float32, error), docs []core.ChunkDocument) ([][]float32, error) {
	if err := core.ValidateChunkDocuments(docs); err != nil {
		return nil, err
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	vectors, err := embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(docs), len(vectors))
	}
	for i := range vectors {
		vectors[i] = core.NormalizeVector(vectors[i])
	}
	return vectors, nil
}
