package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exposition(t *testing.T, r *Recorder) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docingest.prom")
	require.NoError(t, r.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	r.Items("sitemap", OutcomeProcessed, 3)
	r.Items("sitemap", OutcomeCached, 2)
	r.Items("sitemap", OutcomeError, 0)
	r.ChunksUpserted("sitemap", 12)
	r.Shard(true)
	r.Shard(false)
	r.Shard(true)
	r.FetchAttempt(true)
	r.FetchAttempt(false)
	r.IndexDocuments(120)

	out := exposition(t, r)
	assert.Contains(t, out, `docingest_items_total{outcome="processed",source="sitemap"} 3`)
	assert.Contains(t, out, `docingest_items_total{outcome="cached",source="sitemap"} 2`)
	assert.NotContains(t, out, `outcome="error"`)
	assert.Contains(t, out, `docingest_chunks_upserted_total{source="sitemap"} 12`)
	assert.Contains(t, out, `docingest_shards_total{outcome="success"} 2`)
	assert.Contains(t, out, `docingest_shards_total{outcome="failure"} 1`)
	assert.Contains(t, out, `docingest_fetch_attempts_total{outcome="failure"} 1`)
	assert.Contains(t, out, "docingest_index_documents 120")
}

func TestRecorder_Registry(t *testing.T) {
	r := NewRecorder()
	r.Items("urls", OutcomeTooShort, 1)

	families, err := r.Registry().Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "docingest_items_total")
	assert.Contains(t, names, "docingest_index_documents")
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Items("manual", OutcomeProcessed, 1)
		r.ChunksUpserted("manual", 1)
		r.Shard(true)
		r.FetchAttempt(false)
		r.IndexDocuments(1)
	})
	assert.Nil(t, r.Registry())

	path := filepath.Join(t.TempDir(), "x.prom")
	assert.NoError(t, r.WriteTextfile(path))
	assert.NoFileExists(t, path)
}
