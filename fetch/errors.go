package fetch

import "errors"

var (
	// ErrUnexpectedStatus indicates a non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrInvalidURL indicates the request URL could not be parsed.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrTaskPanicked indicates a pooled task panicked. The panic is
	// recorded in that task's result slot.
	ErrTaskPanicked = errors.New("task panicked")
)
