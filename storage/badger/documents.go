package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docingest/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend     *Backend
	ownsBackend bool
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a repository on an existing backend.
// The caller keeps ownership of the backend.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// NewRepository opens a file-backed repository at path.
func NewRepository(path string) (storage.DocumentRepository, error) {
	backend, err := OpenBackend(path, false, nil)
	if err != nil {
		return nil, err
	}
	return &DocumentRepository{backend: backend, ownsBackend: true}, nil
}

// Close closes the backend if the repository opened it.
func (r *DocumentRepository) Close() error {
	if r.ownsBackend && !r.backend.IsClosed() {
		return r.backend.Close()
	}
	return nil
}

// PutDocuments inserts or replaces documents by ID.
func (r *DocumentRepository) PutDocuments(ctx context.Context, docs ...*storage.StoredDocument) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	now := time.Now().UTC()

	tx := r.backend.db.NewTransaction(true)
	defer func() { tx.Discard() }()

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := makeDocumentKey(doc.ID)

		existing, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		switch {
		case existing != nil:
			doc.InsertedAt = existing.InsertedAt
		case doc.InsertedAt.IsZero():
			doc.InsertedAt = now
		}
		doc.UpdatedAt = now

		value, err := storage.MarshalDocument(doc)
		if err != nil {
			return err
		}

		err = tx.Set(key, value)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := tx.Commit(); err != nil {
				return err
			}
			tx = r.backend.db.NewTransaction(true)
			err = tx.Set(key, value)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*storage.StoredDocument, error) {
	var result *storage.StoredDocument
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, makeDocumentKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// CountDocuments counts document keys without reading values.
func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// FindSimilar delegates to the backend.
func (r *DocumentRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*storage.SearchResult, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// ForEachDocument pages through documents in key order. Each page is read in
// its own transaction, so fn may write to the repository.
func (r *DocumentRepository) ForEachDocument(ctx context.Context, batchSize int, fn func([]*storage.StoredDocument) error) error {
	if batchSize <= 0 {
		return storage.ErrInvalidQuery
	}

	var after []byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, last, err := r.page(after, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			if errors.Is(err, storage.ErrStopIteration) {
				return nil
			}
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		after = last
	}
}

// page reads up to n documents whose keys sort after the given key.
func (r *DocumentRepository) page(after []byte, n int) ([]*storage.StoredDocument, []byte, error) {
	var (
		batch []*storage.StoredDocument
		last  []byte
	)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		if after == nil {
			iter.Rewind()
		} else {
			iter.Seek(append(append([]byte{}, after...), 0))
		}

		for ; iter.Valid() && len(batch) < n; iter.Next() {
			item := iter.Item()
			var doc *storage.StoredDocument
			err := item.Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				return err
			}
			if doc.ID == "" {
				doc.ID = documentID(item.Key())
			}
			batch = append(batch, doc)
			last = item.KeyCopy(nil)
		}
		return nil
	}, false)
	return batch, last, err
}

// DeleteAll drops every document.
func (r *DocumentRepository) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.backend.DropPrefix(documentPrefix)
}

// readDocument reads a document from the transaction.
// A missing key yields nil without an error.
func readDocument(tx *badger.Txn, key []byte) (*storage.StoredDocument, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var doc *storage.StoredDocument
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return doc, err
}
