// Package reembed rewrites the vectors of every document in the local index
// using the currently configured embedder.
//
// Switching embedding models leaves stored vectors incomparable with new
// query vectors. Reembedding walks the repository in batches, embeds each
// batch with retry and exponential backoff, normalizes the vectors and
// writes the documents back, reporting progress as it goes.
package reembed
