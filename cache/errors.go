package cache

import "errors"

var (
	// ErrEmptyPath indicates a store was created without a file path.
	ErrEmptyPath = errors.New("cache path cannot be empty")

	// ErrLockTimeout indicates the cache lock could not be acquired in time.
	ErrLockTimeout = errors.New("timed out waiting for cache lock")
)
