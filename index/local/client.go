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


package local

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/poiesic/docingest/ai"
	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/index"
	"github.com/poiesic/docingest/storage"
)

// Name is reported by Stats.
const Name = "local"

// candidateFactor widens the similarity search when results are re-ranked.
const candidateFactor = 4

var (
	// ErrRepositoryRequired is returned when no repository is provided.
	ErrRepositoryRequired = errors.New("document repository required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")
)

// Client stores chunk documents in a storage.DocumentRepository.
type Client struct {
	repo          storage.DocumentRepository
	embedder      ai.Embedder
	minSimilarity float32
	verbatimBoost float32
	monitor       Monitor
	logger        *slog.Logger
}

var _ index.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithMinSimilarity drops query results scoring below threshold.
// Default is -1, which keeps everything.
func WithMinSimilarity(threshold float32) Option {
	return func(c *Client) error {
		if threshold < -1 || threshold > 1 {
			return errors.New("minimum similarity must be within [-1, 1]")
		}
		c.minSimilarity = threshold
		return nil
	}
}

// WithVerbatimBoost adds boost to the score of results containing every
// significant query word. Zero disables re-ranking.
func WithVerbatimBoost(boost float32) Option {
	return func(c *Client) error {
		if boost < 0 {
			return errors.New("verbatim boost cannot be negative")
		}
		c.verbatimBoost = boost
		return nil
	}
}

// WithMonitor observes every query.
func WithMonitor(m Monitor) Option {
	return func(c *Client) error {
		if m == nil {
			m = noopMonitor{}
		}
		c.monitor = m
		return nil
	}
}

// New creates a local index client. The client owns repo and closes it.
func New(repo storage.DocumentRepository, embedder ai.Embedder, opts ...Option) (*Client, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	c := &Client{
		repo:          repo,
		embedder:      embedder,
		minSimilarity: -1,
		monitor:       noopMonitor{},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "local-index")
	return c, nil
}

// Embed returns the normalized embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := c.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	return core.NormalizeVector(vector), nil
}

// Upsert embeds docs and stores them, replacing documents with the same ID.
func (c *Client) Upsert(ctx context.Context, docs []core.ChunkDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	vectors, err := index.EmbedDocuments(ctx, c.embedder.EmbedTexts, docs)
	if err != nil {
		return 0, err
	}

	stored := make([]*storage.StoredDocument, len(docs))
	for i, d := range docs {
		stored[i] = &storage.StoredDocument{
			ID:     d.ID,
			Text:   d.Text,
			Source: d.Source,
			URL:    d.URL,
			Vector: vectors[i],
		}
	}
	if err := c.repo.PutDocuments(ctx, stored...); err != nil {
		return 0, err
	}
	c.logger.Debug("upserted documents", "count", len(docs))
	return len(docs), nil
}

// Query returns the documents most similar to text.
func (c *Client) Query(ctx context.Context, text string, topK int) []core.QueryResult {
	if topK <= 0 {
		topK = index.DefaultTopK
	}
	c.monitor.Start(text)

	vector, err := c.Embed(ctx, text)
	if err != nil {
		c.logger.Warn("query embedding failed", "err", err)
		return nil
	}

	limit := topK
	if c.verbatimBoost > 0 {
		limit = topK * candidateFactor
	}
	matches, err := c.repo.FindSimilar(ctx, vector, c.minSimilarity, limit)
	if err != nil {
		c.logger.Warn("query failed", "err", err)
		return nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.Document.ID
	}
	c.monitor.AfterSimilaritySearch(ids)

	results := make([]core.QueryResult, 0, len(matches))
	for _, m := range matches {
		score := m.Score
		if c.verbatimBoost > 0 && containsAllWords(m.Document.Text, text) {
			score += c.verbatimBoost
			c.monitor.VerbatimHit(m.Document.ID)
		}
		results = append(results, core.QueryResult{
			Text:   m.Document.Text,
			Source: m.Document.Source,
			URL:    m.Document.URL,
			Score:  score,
		})
	}

	slices.SortStableFunc(results, func(a, b core.QueryResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(results) > topK {
		results = results[:topK]
	}
	c.monitor.Finish(results)
	return results
}

// Stats returns the number of stored documents.
func (c *Client) Stats(ctx context.Context) (core.Stats, error) {
	n, err := c.repo.CountDocuments(ctx)
	if err != nil {
		return core.Stats{}, err
	}
	return core.Stats{Count: n, Name: Name}, nil
}

// Reset deletes every stored document.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.repo.DeleteAll(ctx); err != nil {
		return err
	}
	c.logger.Info("index cleared")
	return nil
}

// Close closes the repository.
func (c *Client) Close() error {
	return c.repo.Close()
}
