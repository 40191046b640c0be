// Package store persists materialized configuration trees.
//
// A tree is always written whole. Every backend implements [Backend]:
//
//	type Backend interface {
//	    Replace(ctx context.Context, snap Snapshot) error
//	    Current(ctx context.Context) (Snapshot, error)
//	}
//
// Replace is atomic: either the new snapshot becomes current, or the previous
// one stays authoritative and readers never observe a mix of both.
//
// # Backends
//
//   - [Memory] - process-local, for tests and one-shot tools
//   - [SQLite] - nested-set rows in a single SQL transaction (modernc.org/sqlite)
//   - [Dynamo] - generation-scoped node items plus a versioned pointer item
//
// The DynamoDB backend writes each load under a fresh generation and only then
// flips the tree's pointer item with an optimistic lock. Superseded
// generations are expired through TTL, either inline (see
// [DynamoConfig.SweepInline]) or by the stream package's Lambda handler.
//
// # Configuration
//
// Use [DefaultDynamoConfig] for small trees (NumShards=1, single queries).
// Increase NumShards to spread the node items of large trees:
//
//	cfg := store.DefaultDynamoConfig()
//	cfg.NumShards = 16
//
// # Errors
//
//   - [ErrNotFound] - no tree has been stored yet
//   - [ErrConcurrentModification] - another writer replaced the tree first
//   - [ErrInvalidSnapshot] - the nodes do not form a valid nested set
package store
