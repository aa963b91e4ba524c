// Package fetch issues HTTP GETs with retry and runs many of them, or any
// other per-item work, under a bounded worker pool.
//
// A Fetcher performs one request at a time with a spoofed browser user
// agent, a cache-busting query parameter and linear retry. ProcessMany and
// FetchMany fan work out to an ants pool of fixed size, sleep a pacing delay
// after every completed task, and return results in input order. Individual
// failures are recorded in the result slot and never abort the batch.
package fetch
