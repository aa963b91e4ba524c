// Package index defines the vector index the pipelines write into.
//
// A Client embeds chunk documents and upserts them by ID, so re-ingesting
// unchanged content replaces documents rather than duplicating them.
// Implementations:
//
//   - index/chroma: a Chroma server over its REST API
//   - index/local: an embedded BadgerDB store with brute-force search
//   - index/mock: an in-memory recorder for tests
package index
