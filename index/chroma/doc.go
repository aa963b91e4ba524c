// Package chroma implements index.Client against a Chroma server using its
// v2 REST API. Embeddings are computed client side by an ai.Embedder.
package chroma
