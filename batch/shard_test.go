package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/docingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(urls ...string) []core.ShardRecord {
	recs := make([]core.ShardRecord, len(urls))
	for i, u := range urls {
		recs[i] = core.ShardRecord{URL: u, Hash: "h-" + u, Text: longText(u), LastModified: "2025-01-0" + string(rune('1'+i))}
	}
	return recs
}

func TestWriteAndRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".sitemap-temp")
	recs := records("https://docs.example.com/a", "https://docs.example.com/b")

	path, err := Write(dir, 7, recs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "batch-0007.jsonl"), path)

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, recs, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWrite_NoRecords(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(dir, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRead_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), ShardName(0))
	content := `{"url":"https://a.example.com/1","hash":"x","text":"one"}
not json
{"hash":"missing url"}

{"url":"https://a.example.com/2","hash":"y","text":"two"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := Read(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://a.example.com/1", got[0].URL)
	assert.Equal(t, "two", got[1].Text)
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), ShardName(1)))
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"batch-0010.jsonl", "batch-0002.jsonl", "batch-0001.jsonl", ".batch-0003.jsonl.123.tmp", "notes.txt", "batch-x.jsonl"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}\n"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "batch-0004.jsonl"), 0o755))

	paths, err := List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "batch-0001.jsonl"),
		filepath.Join(dir, "batch-0002.jsonl"),
		filepath.Join(dir, "batch-0010.jsonl"),
	}, paths)

	next, err := NextShardNumber(dir)
	require.NoError(t, err)
	assert.Equal(t, 11, next)
}

func TestList_MissingDirectory(t *testing.T) {
	paths, err := List(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, paths)

	next, err := NextShardNumber(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Zero(t, next)
}

func TestShardNumber(t *testing.T) {
	n, err := ShardNumber("/tmp/x/batch-0042.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = ShardNumber("/tmp/x/batch-42.json")
	assert.ErrorIs(t, err, ErrInvalidShardName)
}
