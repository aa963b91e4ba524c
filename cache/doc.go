// Package cache persists per-key change-detection metadata between runs.
//
// A cache is a flat JSON map from a stable key (URL or filename) to an Entry.
// Three independent predicates decide whether an item can be skipped, one
// per change signal a source may expose:
//
//   - ShouldUseCache compares a freshly computed content hash and honours a TTL.
//   - ShouldSkipByRemoteHash compares an upstream version id and ignores age.
//   - ShouldSkipByLastModified compares last-modified dates.
//
// Passing force=true disables all three.
//
// The file is always written whole. Store adds a cross-process file lock so
// that several writers can merge their entries without losing updates.
package cache
