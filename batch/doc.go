// Package batch implements the resumable two-phase path used for large
// sitemap corpora.
//
// The download phase fetches and extracts pages into numbered shard files
// of newline-delimited JSON. The process phase hands each shard to a worker,
// normally a separate process, which chunks and upserts the records and
// deletes the shard once everything is committed. A failed worker leaves its
// shard on disk so the next run picks it up again.
//
// Workers never write the cache file themselves. They return the entries
// for the URLs they committed and the Coordinator merges them, making the
// parent process the only cache writer.
package batch
