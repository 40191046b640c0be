package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/cfgtree/tree"
)

// Backend persists whole configuration trees.
type Backend interface {
	// Replace atomically makes snap the current tree. On error the previous
	// tree, if any, remains current.
	Replace(ctx context.Context, snap Snapshot) error

	// Current returns the current tree, or ErrNotFound.
	Current(ctx context.Context) (Snapshot, error)
}

// Snapshot is one stored generation of a tree.
type Snapshot struct {
	// Generation uniquely identifies this load of the tree.
	Generation string

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time

	// Nodes are the tree's nodes in nested-set order.
	Nodes []tree.Node
}

// NewSnapshot captures t under a fresh generation ID.
func NewSnapshot(t *tree.Tree) Snapshot {
	return Snapshot{
		Generation: uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Nodes:      t.Nodes(),
	}
}

// Load rebuilds the tree held by the snapshot.
func (s Snapshot) Load() (*tree.Tree, error) {
	t, err := tree.FromNodes(s.Nodes)
	if err != nil {
		return nil, fmt.Errorf("%w: generation %s: %w", ErrInvalidSnapshot, s.Generation, err)
	}
	return t, nil
}

// validate ensures a snapshot can be stored.
func (s Snapshot) validate() error {
	if s.Generation == "" {
		return fmt.Errorf("%w: missing generation", ErrInvalidSnapshot)
	}
	_, err := s.Load()
	return err
}
