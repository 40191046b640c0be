package tree

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Node is a single configuration key in a materialized tree.
type Node struct {
	// ID identifies the node within its tree. IDs start at 1.
	ID int64

	// Name is the configuration key (param_name).
	Name string

	// Value is the scalar value (param_value). Only meaningful when HasValue is true.
	Value string

	// HasValue is true exactly for leaves.
	HasValue bool

	// Left and Right are the nested-set bounds of the node's subtree.
	Left  int
	Right int

	// ParentID is the ID of the owning node, 0 for the root.
	ParentID int64
}

// Span returns Right - Left. Wider spans hold more descendants.
func (n Node) Span() int {
	return n.Right - n.Left
}

// IsRoot reports whether n has no parent.
func (n Node) IsRoot() bool {
	return n.ParentID == 0
}

// Contains reports whether o lies strictly inside n's subtree.
func (n Node) Contains(o Node) bool {
	return n.Left < o.Left && o.Right < n.Right
}

// Tree is an immutable, nested-set numbered configuration tree.
// It is safe for concurrent readers.
type Tree struct {
	nodes    []Node // ordered by Left
	depths   []int
	byID     map[int64]int
	children map[int64][]int

	namesOnce sync.Once
	names     nameIndex
}

// FromNodes rebuilds a tree from persisted nodes, validating that they form a
// single properly nested set with consistent parent links.
func FromNodes(nodes []Node) (*Tree, error) {
	return newTree(append([]Node(nil), nodes...))
}

func newTree(nodes []Node) (*Tree, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrInvalidTree)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Left < nodes[j].Left })

	t := &Tree{
		nodes:    nodes,
		depths:   make([]int, len(nodes)),
		byID:     make(map[int64]int, len(nodes)),
		children: make(map[int64][]int),
	}

	// open holds the indices of intervals enclosing the current node.
	var open []int
	for i, n := range nodes {
		if strings.TrimSpace(n.Name) == "" {
			return nil, fmt.Errorf("%w: node %d", ErrBlankName, n.ID)
		}
		if n.ID <= 0 {
			return nil, fmt.Errorf("%w: node %q has id %d", ErrInvalidTree, n.Name, n.ID)
		}
		if _, dup := t.byID[n.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidTree, n.ID)
		}
		if n.Left >= n.Right {
			return nil, fmt.Errorf("%w: node %d has left %d >= right %d", ErrInvalidTree, n.ID, n.Left, n.Right)
		}
		t.byID[n.ID] = i

		for len(open) > 0 && nodes[open[len(open)-1]].Right < n.Left {
			open = open[:len(open)-1]
		}

		if i == 0 {
			if !n.IsRoot() {
				return nil, fmt.Errorf("%w: leftmost node %d has parent %d", ErrInvalidTree, n.ID, n.ParentID)
			}
		} else {
			if len(open) == 0 {
				return nil, fmt.Errorf("%w: node %d lies outside the root", ErrInvalidTree, n.ID)
			}
			enclosing := nodes[open[len(open)-1]]
			if !enclosing.Contains(n) {
				return nil, fmt.Errorf("%w: node %d partially overlaps node %d", ErrInvalidTree, n.ID, enclosing.ID)
			}
			if n.ParentID != enclosing.ID {
				return nil, fmt.Errorf("%w: node %d has parent %d but is enclosed by %d", ErrInvalidTree, n.ID, n.ParentID, enclosing.ID)
			}
			t.children[enclosing.ID] = append(t.children[enclosing.ID], i)
		}

		t.depths[i] = len(open)
		open = append(open, i)
	}

	for i, n := range nodes {
		hasChildren := len(t.children[n.ID]) > 0
		if i == 0 && !hasChildren {
			return nil, fmt.Errorf("%w: root has no children", ErrInvalidTree)
		}
		if hasChildren == n.HasValue {
			return nil, fmt.Errorf("%w: node %d must carry a value if and only if it is a leaf", ErrInvalidTree, n.ID)
		}
	}

	return t, nil
}

// Root returns the root node.
func (t *Tree) Root() Node {
	return t.nodes[0]
}

// Len returns the number of nodes, root included.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Nodes returns a copy of all nodes in nested-set (pre-order) order.
func (t *Tree) Nodes() []Node {
	return append([]Node(nil), t.nodes...)
}

// Node returns the node with the given id.
func (t *Tree) Node(id int64) (Node, bool) {
	i, ok := t.byID[id]
	if !ok {
		return Node{}, false
	}
	return t.nodes[i], true
}

// Parent returns n's parent. The root has none.
func (t *Tree) Parent(n Node) (Node, bool) {
	if n.IsRoot() {
		return Node{}, false
	}
	return t.Node(n.ParentID)
}

// Depth returns n's distance from the root, or -1 if n is not part of t.
func (t *Tree) Depth(n Node) int {
	i, ok := t.byID[n.ID]
	if !ok {
		return -1
	}
	return t.depths[i]
}

// Descendants returns every node inside n's interval, in pre-order.
func (t *Tree) Descendants(n Node) []Node {
	i, ok := t.byID[n.ID]
	if !ok {
		return nil
	}
	end := sort.Search(len(t.nodes), func(j int) bool { return t.nodes[j].Left > n.Right })
	return append([]Node(nil), t.nodes[i+1:end]...)
}

// Ancestors returns the nodes whose interval contains n, root first.
func (t *Tree) Ancestors(n Node) []Node {
	i, ok := t.byID[n.ID]
	if !ok {
		return nil
	}
	var out []Node
	for _, a := range t.nodes[:i] {
		if a.Contains(n) {
			out = append(out, a)
		}
	}
	return out
}

// Document rebuilds the mapping the tree was loaded from, root excluded.
func (t *Tree) Document() Map {
	return t.document(0)
}

// Subdocument rebuilds the mapping below branch n. It reports false for
// leaves and for nodes that are not part of t.
func (t *Tree) Subdocument(n Node) (Map, bool) {
	i, ok := t.byID[n.ID]
	if !ok || t.nodes[i].HasValue {
		return nil, false
	}
	return t.document(i), true
}

func (t *Tree) document(i int) Map {
	kids := t.children[t.nodes[i].ID]
	m := make(Map, 0, len(kids))
	for _, c := range kids {
		n := t.nodes[c]
		if n.HasValue {
			m = append(m, Entry{Key: n.Name, Value: Scalar(n.Value)})
			continue
		}
		m = append(m, Entry{Key: n.Name, Value: t.document(c)})
	}
	return m
}
