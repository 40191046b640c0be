package store

import (
	"regexp"
	"time"

	"github.com/jacentio/cfgtree/internal/shard"
)

// DefaultTree is the tree name used when none is configured.
const DefaultTree = "application"

// DynamoConfig holds configuration for the Dynamo backend.
type DynamoConfig struct {
	// Tree names the configuration tree this backend reads and replaces.
	// Default: "application"
	Tree string

	// NodeTable is the name of the node table (pk: S, id: N).
	// Default: "cfgtree_nodes"
	NodeTable string

	// PointerTable is the name of the table holding one pointer item per tree (tree: S).
	// Default: "cfgtree_trees"
	PointerTable string

	// NumShards is the number of partitions a generation's nodes are spread over.
	// Higher values increase write throughput for large trees but require more
	// parallel queries on load.
	// Default: 1 (no sharding, single query)
	// Max: 256
	NumShards int

	// SweepInline expires the superseded generation as part of Replace.
	// Leave false when the stream handler is deployed on the pointer table.
	SweepInline bool

	// Retention keeps a superseded generation readable for this long, so
	// readers that fetched the old pointer can finish loading it.
	// Default: 1h
	Retention time.Duration

	// MaxBatchRetries bounds how often unprocessed batch writes are resent.
	// Default: 5
	MaxBatchRetries int
}

// DefaultDynamoConfig returns sensible defaults for small trees.
func DefaultDynamoConfig() DynamoConfig {
	return DynamoConfig{
		Tree:            DefaultTree,
		NodeTable:       "cfgtree_nodes",
		PointerTable:    "cfgtree_trees",
		NumShards:       1,
		Retention:       time.Hour,
		MaxBatchRetries: 5,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *DynamoConfig) validate() {
	if c.Tree == "" {
		c.Tree = DefaultTree
	}
	if c.NodeTable == "" {
		c.NodeTable = "cfgtree_nodes"
	}
	if c.PointerTable == "" {
		c.PointerTable = "cfgtree_trees"
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > shard.MaxShards {
		c.NumShards = shard.MaxShards
	}
	if c.Retention < 0 {
		c.Retention = 0
	}
	if c.MaxBatchRetries < 1 {
		c.MaxBatchRetries = 5
	}
}

// SQLiteConfig holds configuration for the SQLite backend.
type SQLiteConfig struct {
	// Tree names the configuration tree this backend reads and replaces.
	// Default: "application"
	Tree string

	// ItemsTable holds one row per node.
	// Default: "config_items"
	ItemsTable string

	// TreesTable holds one pointer row per tree.
	// Default: "config_trees"
	TreesTable string
}

// DefaultSQLiteConfig returns the default SQLite table layout.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Tree:       DefaultTree,
		ItemsTable: "config_items",
		TreesTable: "config_trees",
	}
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validate fills blanks and replaces table names that are not plain SQL identifiers.
func (c *SQLiteConfig) validate() {
	if c.Tree == "" {
		c.Tree = DefaultTree
	}
	if !identifier.MatchString(c.ItemsTable) {
		c.ItemsTable = "config_items"
	}
	if !identifier.MatchString(c.TreesTable) {
		c.TreesTable = "config_trees"
	}
}
