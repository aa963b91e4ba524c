package reembed

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/docingest/storage"
	"github.com/poiesic/docingest/storage/badger"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T, n int) storage.DocumentRepository {
	t.Helper()
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	docs := make([]*storage.StoredDocument, n)
	for i := range docs {
		docs[i] = &storage.StoredDocument{
			ID:     fmt.Sprintf("doc_%03d", i),
			Text:   fmt.Sprintf("document number %d", i),
			Source: "Docs",
			Vector: []float32{1, 0, 0},
		}
	}
	if n > 0 {
		require.NoError(t, repo.PutDocuments(context.Background(), docs...))
	}
	return repo
}

// magnitude3 returns vectors of length 3 for every text.
func magnitude3(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1.0, 2.0, 2.0}
	}
	return out, nil
}
