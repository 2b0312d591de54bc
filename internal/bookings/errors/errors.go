package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStaleState is returned by a guarded transition when the stored
	// status no longer matches what the caller read.
	ErrStaleState = errors.New("booking status changed concurrently")
)
