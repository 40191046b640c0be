// Package shard provides partition key generation for sharded node tables.
package shard

import (
	"fmt"
	"hash/fnv"
	"strconv"
)

// MaxShards is the largest supported shard count.
const MaxShards = 256

// NodePK computes the sharded partition key for a node item of one tree generation.
// With numShards=1, all nodes go to shard "00".
// With numShards>1, nodes are distributed across shards based on a hash of the node ID.
func NodePK(tree, generation string, nodeID int64, numShards int) string {
	if numShards <= 1 {
		return PK(tree, generation, 0)
	}
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatInt(nodeID, 10)))
	return PK(tree, generation, int(h.Sum32()%uint32(numShards)))
}

// PK returns the partition key of one shard of a tree generation.
func PK(tree, generation string, shard int) string {
	return fmt.Sprintf("%s#%s#%02x", tree, generation, shard)
}

// All returns the partition keys of every shard of a tree generation.
func All(tree, generation string, numShards int) []string {
	if numShards < 1 {
		numShards = 1
	}
	keys := make([]string, numShards)
	for i := range keys {
		keys[i] = PK(tree, generation, i)
	}
	return keys
}
