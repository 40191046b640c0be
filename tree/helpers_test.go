package tree_test

import (
	"testing"

	"github.com/jacentio/cfgtree/tree"
)

// dbDoc is { db: { host: localhost, port: "5432" } }.
func dbDoc() tree.Map {
	return tree.Map{
		{Key: "db", Value: tree.Map{
			{Key: "host", Value: tree.Scalar("localhost")},
			{Key: "port", Value: tree.Scalar("5432")},
		}},
	}
}

// appDoc is a three level document whose first-level branches have
// different numbers of children.
func appDoc() tree.Map {
	return tree.Map{
		{Key: "server", Value: tree.Map{
			{Key: "http", Value: tree.Map{
				{Key: "port", Value: tree.Scalar("8080")},
			}},
			{Key: "grpc", Value: tree.Map{
				{Key: "port", Value: tree.Scalar("9090")},
				{Key: "reflection", Value: tree.Scalar("true")},
			}},
			{Key: "name", Value: tree.Scalar("api")},
		}},
		{Key: "db", Value: tree.Map{
			{Key: "host", Value: tree.Scalar("localhost")},
		}},
		{Key: "debug", Value: tree.Scalar("false")},
	}
}

func mustTree(t *testing.T, m tree.Map) *tree.Tree {
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

func names(nodes []tree.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
