// Package loader keeps the process-wide configuration tree current.
//
// A Loader builds a tree from a document, persists it through a store.Backend
// and only then swaps it in. Readers call Current and get an immutable tree
// they can query without locking. A failed load leaves both the backend and
// Current unchanged.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jacentio/cfgtree/document"
	"github.com/jacentio/cfgtree/store"
	"github.com/jacentio/cfgtree/tree"
)

// Loader owns the current configuration tree.
type Loader struct {
	backend store.Backend
	logger  *slog.Logger

	// mu serializes loads; readers never take it.
	mu      sync.Mutex
	current atomic.Pointer[loaded]
}

// loaded pairs a tree with the generation it was stored under.
type loaded struct {
	tree       *tree.Tree
	generation string
}

// New creates a Loader persisting through backend.
func New(backend store.Backend, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		backend: backend,
		logger:  logger,
	}
}

// Current returns the current tree, or nil before the first Load or Restore.
func (l *Loader) Current() *tree.Tree {
	t, _ := l.State()
	return t
}

// Generation returns the generation of the current tree, or "".
func (l *Loader) Generation() string {
	_, g := l.State()
	return g
}

// State returns the current tree together with its generation. Both come
// from the same load.
func (l *Loader) State() (*tree.Tree, string) {
	if c := l.current.Load(); c != nil {
		return c.tree, c.generation
	}
	return nil, ""
}

// Load builds a tree from m, persists it and makes it current.
func (l *Loader) Load(ctx context.Context, m tree.Map) (*tree.Tree, error) {
	staged, err := tree.Build(m)
	if err != nil {
		return nil, err
	}
	t, err := tree.Materialize(staged)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	snap := store.NewSnapshot(t)
	if err := l.backend.Replace(ctx, snap); err != nil {
		l.logger.Warn("load failed, keeping previous tree",
			"generation", snap.Generation,
			"previousGeneration", l.Generation(),
			"error", err,
		)
		return nil, fmt.Errorf("persist tree: %w", err)
	}

	l.swap(t, snap.Generation)
	l.logger.Info("tree loaded", "generation", snap.Generation, "nodeCount", t.Len())
	return t, nil
}

// LoadFile decodes the document at path and loads it.
func (l *Loader) LoadFile(ctx context.Context, path string) (*tree.Tree, error) {
	m, err := document.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	t, err := l.Load(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return t, nil
}

// Restore makes the backend's current tree the loader's current tree.
// It returns store.ErrNotFound when nothing has been stored.
func (l *Loader) Restore(ctx context.Context) (*tree.Tree, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.backend.Current(ctx)
	if err != nil {
		return nil, err
	}
	t, err := snap.Load()
	if err != nil {
		return nil, err
	}

	l.swap(t, snap.Generation)
	l.logger.Debug("tree restored", "generation", snap.Generation, "nodeCount", t.Len())
	return t, nil
}

func (l *Loader) swap(t *tree.Tree, generation string) {
	l.current.Store(&loaded{tree: t, generation: generation})
}
