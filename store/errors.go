package store

import "errors"

var (
	// ErrNotFound is returned when no tree has been stored yet.
	ErrNotFound = errors.New("cfgtree: tree not found")

	// ErrConcurrentModification is returned when the tree pointer changed between
	// reading it and flipping it (optimistic lock failed).
	ErrConcurrentModification = errors.New("cfgtree: tree was replaced concurrently")

	// ErrInvalidSnapshot is returned when a snapshot's nodes do not form a valid tree,
	// or when a stored generation is incomplete.
	ErrInvalidSnapshot = errors.New("cfgtree: invalid snapshot")
)
