package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStaleVersion is returned when an optimistic update lost a race
	// against a concurrent writer.
	ErrStaleVersion = errors.New("entity was modified concurrently")

	// ErrLockTimeout is returned when a row lock could not be acquired in time.
	// The operation can be retried.
	ErrLockTimeout = errors.New("timed out waiting for lock")
)
