// Package local implements index.Client on an embedded BadgerDB store.
//
// Similarity search is brute force over every stored vector, which is
// adequate for the tens of thousands of chunks a documentation corpus
// produces. Results can optionally be re-ranked so chunks containing every
// significant query word are promoted.
package local
