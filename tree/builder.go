package tree

import (
	"fmt"
	"sort"
)

// RootName is the name given to the implicit top level of every document.
const RootName = "root"

// NoParent is the Parent value of the root staged node.
const NoParent = -1

// StagedNode is one configuration key before it is materialized into a [Tree].
type StagedNode struct {
	// ID identifies the node within a single staged list.
	ID int

	// Name is the configuration key, or RootName for the root.
	Name string

	// Value is the scalar value. Only meaningful when Leaf is true.
	Value string

	// Leaf reports whether the node carries a value instead of children.
	Leaf bool

	// Parent is the ID of the staged node this one was expanded from.
	// NoParent for the root.
	Parent int

	// Depth is 0 for the root and grows by one per nesting level.
	Depth int
}

// pending is a mapping waiting to be expanded into staged children.
type pending struct {
	id    int
	depth int
	m     Map
}

// Build flattens m into staged nodes ordered by non-decreasing depth, so every
// parent precedes its children. The document itself becomes a synthetic root
// named RootName at depth 0.
//
// Scalars become leaves. Nested mappings become branches and are expanded in
// turn; an empty nested mapping becomes a leaf with an empty value, as does a
// nil value.
func Build(m Map) ([]StagedNode, error) {
	if len(m) == 0 {
		return nil, fmt.Errorf("%w: document has no keys", ErrInvalidDocument)
	}

	staged := []StagedNode{{ID: 0, Name: RootName, Parent: NoParent}}
	queue := []pending{{id: 0, m: m}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, e := range current.m {
			n := StagedNode{
				ID:     len(staged),
				Name:   e.Key,
				Parent: current.id,
				Depth:  current.depth + 1,
			}

			switch v := e.Value.(type) {
			case Scalar:
				n.Leaf = true
				n.Value = string(v)
			case Map:
				if len(v) == 0 {
					n.Leaf = true
				} else {
					queue = append(queue, pending{id: n.ID, depth: n.Depth, m: v})
				}
			case nil:
				n.Leaf = true
			default:
				return nil, fmt.Errorf("%w: key %q holds unsupported value %T", ErrInvalidDocument, e.Key, e.Value)
			}

			staged = append(staged, n)
		}
	}

	sort.SliceStable(staged, func(i, j int) bool {
		return staged[i].Depth < staged[j].Depth
	})
	return staged, nil
}
