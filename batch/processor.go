package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/poiesic/docingest/cache"
	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/index"
	"github.com/poiesic/docingest/source"
)

// WorkerResult is what a worker reports for one shard. Entries holds the
// cache entry of every URL whose chunks were committed.
type WorkerResult struct {
	Processed   int         `json:"processed"`
	ChunksAdded int         `json:"chunksAdded"`
	Entries     cache.Cache `json:"entries,omitempty"`
}

// ShardProcessor is the worker side of the process phase.
type ShardProcessor struct {
	client index.Client
	opts   options
	logger *slog.Logger
}

// NewShardProcessor creates a processor writing to client.
func NewShardProcessor(client index.Client, opts ...Option) (*ShardProcessor, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	o := newOptions("shard-processor", opts)
	return &ShardProcessor{client: client, opts: o, logger: o.logger}, nil
}

// Process chunks every record of the shard at path and upserts the chunks
// in sub-batches. The shard file is deleted only when every upsert
// succeeded; on error it stays on disk and no entries are returned.
func (p *ShardProcessor) Process(ctx context.Context, path, sourceName string) (WorkerResult, error) {
	recs, err := Read(path)
	if err != nil {
		return WorkerResult{}, err
	}
	logger := p.logger.With("shard", path)
	logger.Debug("processing shard", "records", len(recs))

	result := WorkerResult{Entries: cache.Cache{}}
	var pending []core.ChunkDocument
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := p.client.Upsert(ctx, pending)
		if err != nil {
			return fmt.Errorf("failed to upsert %d chunks: %w", len(pending), err)
		}
		result.ChunksAdded += n
		pending = nil
		return nil
	}

	for _, rec := range recs {
		for _, doc := range source.SitemapDocuments(sourceName, rec, p.opts.chunkOpts...) {
			pending = append(pending, doc)
			if len(pending) >= p.opts.subBatch {
				if err := flush(); err != nil {
					return WorkerResult{}, err
				}
			}
		}
		cache.Update(result.Entries, rec.URL, rec.Hash, cache.WithLastModified(rec.LastModified))
		result.Processed++
	}
	if err := flush(); err != nil {
		return WorkerResult{}, err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// The chunks are committed; a leftover shard is only re-upserted.
		logger.Warn("failed to delete processed shard", "err", err)
	}
	logger.Debug("shard committed", "processed", result.Processed, "chunks", result.ChunksAdded)
	return result, nil
}
