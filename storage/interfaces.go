package storage

import (
	"context"
	"time"
)

// StoredDocument is a chunk document as persisted by the local index.
type StoredDocument struct {
	ID         string    `cbor:"1,keyasint"`
	Text       string    `cbor:"2,keyasint"`
	Source     string    `cbor:"3,keyasint,omitempty"`
	URL        string    `cbor:"4,keyasint,omitempty"`
	Vector     []float32 `cbor:"5,keyasint,omitempty"`
	InsertedAt time.Time `cbor:"6,keyasint"`
	UpdatedAt  time.Time `cbor:"7,keyasint"`
}

// SearchResult is a document paired with its similarity to a query vector.
type SearchResult struct {
	Document *StoredDocument
	Score    float32
}

// DocumentRepository stores chunk documents and their embeddings.
type DocumentRepository interface {
	// PutDocuments inserts or replaces documents by ID.
	// InsertedAt is preserved for documents that already exist;
	// UpdatedAt is always set to the current time.
	PutDocuments(ctx context.Context, docs ...*StoredDocument) error

	// GetDocument retrieves a single document.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*StoredDocument, error)

	// CountDocuments returns the number of stored documents.
	CountDocuments(ctx context.Context) (int, error)

	// FindSimilar returns documents whose vectors score >= minSimilarity
	// against vector, best first, up to limit results.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*SearchResult, error)

	// ForEachDocument calls fn with successive batches of up to batchSize
	// documents in ID order. Iteration stops at the first error from fn;
	// ErrStopIteration ends it without an error.
	ForEachDocument(ctx context.Context, batchSize int, fn func([]*StoredDocument) error) error

	// DeleteAll removes every document.
	DeleteAll(ctx context.Context) error

	// Close releases resources held by the repository.
	Close() error
}
