package tree

import (
	"fmt"
	"strings"
)

// Scope restricts a [Tree.ByName] lookup.
type Scope struct {
	parent int64
	direct bool
}

// EntireTree matches names anywhere in the tree, ignoring case.
var EntireTree = Scope{}

// ChildrenOf matches exact names among n's direct children only.
func ChildrenOf(n Node) Scope {
	return Scope{parent: n.ID, direct: true}
}

// ByName returns the node called name within scope. When several nodes match,
// the one with the widest span (the most descendants) wins, and equal spans
// go to the leftmost node. A blank name never matches.
func (t *Tree) ByName(name string, scope Scope) (Node, bool) {
	if strings.TrimSpace(name) == "" {
		return Node{}, false
	}

	best := -1
	consider := func(i int) {
		if best < 0 || wider(t.nodes[i], t.nodes[best]) {
			best = i
		}
	}

	if scope.direct {
		for _, i := range t.children[scope.parent] {
			if t.nodes[i].Name == name {
				consider(i)
			}
		}
	} else {
		for _, i := range t.folded()[fold(name)] {
			consider(i)
		}
	}

	if best < 0 {
		return Node{}, false
	}
	return t.nodes[best], true
}

// wider orders duplicate-name candidates: larger span first, then smaller Left.
func wider(a, b Node) bool {
	if a.Span() != b.Span() {
		return a.Span() > b.Span()
	}
	return a.Left < b.Left
}

// DirectChildren returns n's children in document order. Nodes that are not
// part of t have none.
func (t *Tree) DirectChildren(n Node) []Node {
	kids := t.children[n.ID]
	if len(kids) == 0 {
		return nil
	}
	out := make([]Node, len(kids))
	for i, c := range kids {
		out[i] = t.nodes[c]
	}
	return out
}

// Dig expands the tree breadth first from the root and returns the nodes of
// levels 1 through levels, keyed by level. The root level is never included.
// Levels deeper than the tree map to empty slices.
func (t *Tree) Dig(levels int) (map[int][]Node, error) {
	if levels < 1 {
		return nil, fmt.Errorf("%w: dig needs at least 1 level, got %d", ErrInvalidArgument, levels)
	}

	result := make(map[int][]Node, levels)
	frontier := []int{0}
	for level := 1; level <= levels; level++ {
		var next []int
		for _, i := range frontier {
			next = append(next, t.children[t.nodes[i].ID]...)
		}

		group := make([]Node, len(next))
		for j, i := range next {
			group[j] = t.nodes[i]
		}
		result[level] = group
		frontier = next
	}
	return result, nil
}
