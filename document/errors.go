package document

import "errors"

var (
	// ErrUnsupportedFormat is returned for an unknown format or file extension.
	ErrUnsupportedFormat = errors.New("cfgtree: unsupported document format")

	// ErrNotMapping is returned when the top level of a document is not a mapping.
	ErrNotMapping = errors.New("cfgtree: document is not a mapping")

	// ErrDuplicateKey is returned when two HCL blocks or attributes claim the same key
	// and cannot be merged.
	ErrDuplicateKey = errors.New("cfgtree: duplicate key")

	// ErrUnsupportedValue is returned for values that have no string form,
	// or keys that cannot be written in the target format.
	ErrUnsupportedValue = errors.New("cfgtree: unsupported value")
)
