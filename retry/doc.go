// Package retry runs fallible operations under a bounded retry policy.
//
// Two schedules are supported: exponential (used when re-embedding documents)
// and linear (used by the HTTP fetcher). A policy may also cap the total time
// spent across all attempts.
package retry
