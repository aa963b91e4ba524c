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


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/docingest/ai"
	"github.com/poiesic/docingest/progress"
	"github.com/poiesic/docingest/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of documents to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Result reports what a run did.
type Result struct {
	Documents int
	Elapsed   time.Duration
}

// Reembedder orchestrates the reembedding of every stored document.
type Reembedder struct {
	repo      storage.DocumentRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *DocumentIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.DocumentRepository, embedder ai.Embedder, config *Config, progress io.Writer, logger *slog.Logger) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewDocumentIterator(repo, config.BatchSize),
		logger:    logger.With("component", "reembedder"),
	}, nil
}

// Run reembeds every document in the repository. The first batch that
// cannot be embedded or stored stops the run; documents already written
// keep their new vectors.
func (r *Reembedder) Run(ctx context.Context) (Result, error) {
	total, err := r.repo.CountDocuments(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count documents: %w", err)
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No documents found in index (0 documents)\n")
		return Result{}, nil
	}

	r.logger.Info("starting reembedding", "documents", total, "batch_size", r.iterator.batchSize)

	tracker := progress.NewTracker(r.progress, total, r.config.ReportInterval,
		progress.WithLabel("Reembedding"), progress.WithUnit("docs"))
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, func(docs []*storage.StoredDocument) error {
		if err := r.processor.Process(ctx, docs); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(docs)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		r.logger.Error("reembedding stopped", "processed", processed, "error", err)
		return Result{Documents: processed, Elapsed: tracker.Elapsed()}, err
	}

	tracker.Finish()
	elapsed := tracker.Elapsed()
	r.logger.Info("reembedding complete", "documents", processed, "elapsed", elapsed.Round(time.Millisecond))
	return Result{Documents: processed, Elapsed: elapsed}, nil
}
