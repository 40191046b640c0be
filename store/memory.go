package store

import (
	"context"
	"sync"

	"github.com/jacentio/cfgtree/tree"
)

// Memory is a process-local Backend.
type Memory struct {
	mu      sync.RWMutex
	current *Snapshot
}

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

// Replace stores a copy of snap.
func (m *Memory) Replace(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := snap.validate(); err != nil {
		return err
	}

	snap.Nodes = append([]tree.Node(nil), snap.Nodes...)

	m.mu.Lock()
	m.current = &snap
	m.mu.Unlock()
	return nil
}

// Current returns a copy of the stored snapshot.
func (m *Memory) Current(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Snapshot{}, ErrNotFound
	}

	snap := *m.current
	snap.Nodes = append([]tree.Node(nil), snap.Nodes...)
	return snap, nil
}
