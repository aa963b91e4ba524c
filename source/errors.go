package source

import "errors"

var (
	// ErrInvalidConfig indicates an adapter configuration failed validation.
	ErrInvalidConfig = errors.New("invalid source config")

	// ErrConfigNotFound indicates the adapter configuration file is missing.
	ErrConfigNotFound = errors.New("source config not found")

	// ErrUnknownKind indicates an unsupported source kind.
	ErrUnknownKind = errors.New("unknown source kind")

	// ErrUnchanged is returned by Process when fetched content matches the
	// cache. The item is counted as cached, not as an error.
	ErrUnchanged = errors.New("content unchanged")

	// ErrUnknownItem indicates Process was given an item it did not discover.
	ErrUnknownItem = errors.New("unknown item")

	// ErrDiscovery indicates the discovery endpoint could not be read.
	ErrDiscovery = errors.New("discovery failed")
)
