// Package mock provides an in-memory index.Client for tests.
package mock

import (
	"context"
	"slices"
	"strings"
	"sync"

	aimock "github.com/poiesic/docingest/ai/mock"
	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/index"
)

// MockClient keeps documents in a map and records every upsert.
type MockClient struct {
	// UpsertFunc, if set, is called before documents are stored. A non-nil
	// error fails the upsert and nothing is stored.
	UpsertFunc func(ctx context.Context, docs []core.ChunkDocument) error

	// QueryFunc, if set, replaces the default substring search.
	QueryFunc func(ctx context.Context, text string, topK int) []core.QueryResult

	mu      sync.Mutex
	docs    map[string]core.ChunkDocument
	upserts [][]core.ChunkDocument
	resets  int
	closed  bool
}

var _ index.Client = (*MockClient)(nil)

// NewMockClient creates an empty mock index.
func NewMockClient() *MockClient {
	return &MockClient{docs: make(map[string]core.ChunkDocument)}
}

// Embed returns a deterministic vector for text.
func (m *MockClient) Embed(_ context.Context, text string) ([]float32, error) {
	return aimock.Vector(text, aimock.DefaultDimension), nil
}

// Upsert stores docs by ID after validating them.
func (m *MockClient) Upsert(ctx context.Context, docs []core.ChunkDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	if err := core.ValidateChunkDocuments(docs); err != nil {
		return 0, err
	}
	if m.UpsertFunc != nil {
		if err := m.UpsertFunc(ctx, docs); err != nil {
			return 0, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, slices.Clone(docs))
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return len(docs), nil
}

// Query returns documents whose text contains text, ordered by ID.
func (m *MockClient) Query(ctx context.Context, text string, topK int) []core.QueryResult {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, text, topK)
	}
	if topK <= 0 {
		topK = index.DefaultTopK
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var results []core.QueryResult
	for _, id := range m.sortedIDs() {
		d := m.docs[id]
		if !strings.Contains(strings.ToLower(d.Text), strings.ToLower(text)) {
			continue
		}
		results = append(results, core.QueryResult{Text: d.Text, Source: d.Source, URL: d.URL, Score: 1})
		if len(results) == topK {
			break
		}
	}
	return results
}

// Stats returns the number of stored documents.
func (m *MockClient) Stats(context.Context) (core.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return core.Stats{Count: len(m.docs), Name: "mock"}, nil
}

// Reset removes every document.
func (m *MockClient) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.docs)
	m.resets++
	return nil
}

// Close marks the client closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Documents returns the stored documents ordered by ID.
func (m *MockClient) Documents() []core.ChunkDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.ChunkDocument, 0, len(m.docs))
	for _, id := range m.sortedIDs() {
		out = append(out, m.docs[id])
	}
	return out
}

// Upserts returns a copy of the batches passed to successful upserts.
func (m *MockClient) Upserts() [][]core.ChunkDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.upserts)
}

// Resets returns how many times Reset was called.
func (m *MockClient) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockClient) sortedIDs() []string {
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
