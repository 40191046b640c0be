package store_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jacentio/cfgtree/store"
	"github.com/jacentio/cfgtree/tree"
)

// --- Test Trees ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildTree(t *testing.T, m tree.Map) *tree.Tree {
	t.Helper()
	staged, err := tree.Build(m)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	tr, err := tree.Materialize(staged)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	return tr
}

func firstTree(t *testing.T) *tree.Tree {
	return buildTree(t, tree.Map{
		{Key: "db", Value: tree.Map{
			{Key: "host", Value: tree.Scalar("localhost")},
			{Key: "port", Value: tree.Scalar("5432")},
		}},
	})
}

func secondTree(t *testing.T) *tree.Tree {
	return buildTree(t, tree.Map{
		{Key: "cache", Value: tree.Map{
			{Key: "ttl", Value: tree.Scalar("30s")},
			{Key: "empty", Value: tree.Scalar("")},
		}},
		{Key: "debug", Value: tree.Scalar("true")},
	})
}

// --- Backend Contract ---

// testBackendContract runs the behaviour every Backend must share.
func testBackendContract(t *testing.T, newBackend func(t *testing.T) store.Backend) {
	t.Run("empty backend", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.Current(context.Background())
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("replace then read", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)
		want := firstTree(t)

		snap := store.NewSnapshot(want)
		if err := b.Replace(ctx, snap); err != nil {
			t.Fatalf("replace: %v", err)
		}

		got, err := b.Current(ctx)
		if err != nil {
			t.Fatalf("current: %v", err)
		}
		if got.Generation != snap.Generation {
			t.Errorf("expected generation %q, got %q", snap.Generation, got.Generation)
		}
		assertSameNodes(t, want.Nodes(), got.Nodes)

		loaded, err := got.Load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if v, ok := loaded.Lookup("db", "port").Leaf(); !ok || v != "5432" {
			t.Errorf("expected port 5432, got %q", v)
		}
	})

	t.Run("second replace wins", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		if err := b.Replace(ctx, store.NewSnapshot(firstTree(t))); err != nil {
			t.Fatalf("first replace: %v", err)
		}
		second := secondTree(t)
		snap := store.NewSnapshot(second)
		if err := b.Replace(ctx, snap); err != nil {
			t.Fatalf("second replace: %v", err)
		}

		got, err := b.Current(ctx)
		if err != nil {
			t.Fatalf("current: %v", err)
		}
		if got.Generation != snap.Generation {
			t.Errorf("expected generation %q, got %q", snap.Generation, got.Generation)
		}
		assertSameNodes(t, second.Nodes(), got.Nodes)
	})

	t.Run("invalid snapshot keeps previous tree", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		good := store.NewSnapshot(firstTree(t))
		if err := b.Replace(ctx, good); err != nil {
			t.Fatalf("replace: %v", err)
		}

		bad := store.NewSnapshot(secondTree(t))
		bad.Nodes[1].Right = bad.Nodes[0].Right + 10
		if err := b.Replace(ctx, bad); !errors.Is(err, store.ErrInvalidSnapshot) {
			t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
		}

		got, err := b.Current(ctx)
		if err != nil {
			t.Fatalf("current: %v", err)
		}
		if got.Generation != good.Generation {
			t.Errorf("expected previous generation %q to stay current, got %q", good.Generation, got.Generation)
		}
	})

	t.Run("missing generation", func(t *testing.T) {
		b := newBackend(t)
		snap := store.NewSnapshot(firstTree(t))
		snap.Generation = ""
		if err := b.Replace(context.Background(), snap); !errors.Is(err, store.ErrInvalidSnapshot) {
			t.Errorf("expected ErrInvalidSnapshot, got %v", err)
		}
	})
}

func assertSameNodes(t *testing.T, want, got []tree.Node) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("node %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

// --- Unit Tests ---

func TestMemory(t *testing.T) {
	testBackendContract(t, func(t *testing.T) store.Backend { return store.NewMemory() })
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	if err := m.Replace(ctx, store.NewSnapshot(firstTree(t))); err != nil {
		t.Fatalf("replace: %v", err)
	}

	a, _ := m.Current(ctx)
	a.Nodes[0].Name = "changed"

	b, _ := m.Current(ctx)
	if b.Nodes[0].Name != "root" {
		t.Errorf("expected stored snapshot to be unaffected, got %q", b.Nodes[0].Name)
	}
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := store.NewMemory()
	if err := m.Replace(ctx, store.NewSnapshot(firstTree(t))); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewSnapshot(t *testing.T) {
	tr := firstTree(t)
	a := store.NewSnapshot(tr)
	b := store.NewSnapshot(tr)

	if a.Generation == "" || a.Generation == b.Generation {
		t.Errorf("expected distinct generations, got %q and %q", a.Generation, b.Generation)
	}
	if a.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if len(a.Nodes) != tr.Len() {
		t.Errorf("expected %d nodes, got %d", tr.Len(), len(a.Nodes))
	}
}

func TestSnapshotLoad_Invalid(t *testing.T) {
	snap := store.Snapshot{Generation: "g1"}
	_, err := snap.Load()
	if !errors.Is(err, store.ErrInvalidSnapshot) {
		t.Errorf("expected ErrInvalidSnapshot, got %v", err)
	}
	if !errors.Is(err, tree.ErrInvalidTree) {
		t.Errorf("expected wrapped ErrInvalidTree, got %v", err)
	}
}

func TestDefaultConfigs(t *testing.T) {
	dc := store.DefaultDynamoConfig()
	if dc.Tree != store.DefaultTree {
		t.Errorf("expected Tree %q, got %q", store.DefaultTree, dc.Tree)
	}
	if dc.NodeTable != "cfgtree_nodes" || dc.PointerTable != "cfgtree_trees" {
		t.Errorf("unexpected table names %q / %q", dc.NodeTable, dc.PointerTable)
	}
	if dc.NumShards != 1 {
		t.Errorf("expected NumShards 1, got %d", dc.NumShards)
	}

	sc := store.DefaultSQLiteConfig()
	if sc.ItemsTable != "config_items" || sc.TreesTable != "config_trees" {
		t.Errorf("unexpected table names %q / %q", sc.ItemsTable, sc.TreesTable)
	}
}

func TestErrors(t *testing.T) {
	for _, err := range []error{store.ErrNotFound, store.ErrConcurrentModification, store.ErrInvalidSnapshot} {
		if err.Error() == "" {
			t.Errorf("error %v has empty message", err)
		}
	}
}
