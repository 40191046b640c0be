package tree

import "errors"

var (
	// ErrInvalidDocument is returned when the input document is empty or holds values
	// that cannot be represented as configuration nodes.
	ErrInvalidDocument = errors.New("cfgtree: invalid document")

	// ErrOrphanNode is returned when a staged node references a parent that has not
	// been materialized. It indicates a broken staged list, not a user error.
	ErrOrphanNode = errors.New("cfgtree: staged node has no materialized parent")

	// ErrInvalidArgument is returned for bad query parameters.
	ErrInvalidArgument = errors.New("cfgtree: invalid argument")

	// ErrBlankName is returned when a node would be created with an empty name.
	ErrBlankName = errors.New("cfgtree: node name is blank")

	// ErrInvalidTree is returned when a set of nodes violates nested-set invariants.
	ErrInvalidTree = errors.New("cfgtree: nodes do not form a valid nested set")
)
