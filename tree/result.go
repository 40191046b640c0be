package tree

// Kind tells which alternative a [Result] holds.
type Kind int

const (
	// KindMissing means nothing matched.
	KindMissing Kind = iota
	// KindLeaf means the match is a leaf carrying a value.
	KindLeaf
	// KindBranch means the match has children and can be indexed further.
	KindBranch
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindBranch:
		return "branch"
	default:
		return "missing"
	}
}

// Result is the outcome of a chained key lookup: a leaf value, a branch node,
// or nothing.
type Result struct {
	tree *Tree
	node Node
	kind Kind
}

// Get looks name up anywhere in t (see [EntireTree]) and wraps the match.
func (t *Tree) Get(name string) Result {
	n, ok := t.ByName(name, EntireTree)
	if !ok {
		return Result{}
	}
	return t.result(n)
}

// Lookup chains Get calls: the first key is matched anywhere in the tree,
// each following key among the previous match's direct children.
func (t *Tree) Lookup(path ...string) Result {
	if len(path) == 0 {
		return Result{}
	}
	r := t.Get(path[0])
	for _, key := range path[1:] {
		r = r.Get(key)
	}
	return r
}

// At wraps n, which must be a node of t, as a Result. Use it to start a chain
// from a node found by other means, such as the root.
func (t *Tree) At(n Node) Result {
	if _, ok := t.byID[n.ID]; !ok {
		return Result{}
	}
	return t.result(n)
}

func (t *Tree) result(n Node) Result {
	kind := KindBranch
	if n.HasValue {
		kind = KindLeaf
	}
	return Result{tree: t, node: n, kind: kind}
}

// Get looks name up among the direct children of a branch result. Leaves and
// missing results yield a missing result.
func (r Result) Get(name string) Result {
	if r.kind != KindBranch {
		return Result{}
	}
	n, ok := r.tree.ByName(name, ChildrenOf(r.node))
	if !ok {
		return Result{}
	}
	return r.tree.result(n)
}

// Kind returns which alternative r holds.
func (r Result) Kind() Kind {
	return r.kind
}

// Found reports whether anything matched.
func (r Result) Found() bool {
	return r.kind != KindMissing
}

// Leaf returns the value of a leaf result.
func (r Result) Leaf() (string, bool) {
	if r.kind != KindLeaf {
		return "", false
	}
	return r.node.Value, true
}

// Branch returns the node of a branch result.
func (r Result) Branch() (Node, bool) {
	if r.kind != KindBranch {
		return Node{}, false
	}
	return r.node, true
}

// Node returns the matched node, leaf or branch.
func (r Result) Node() (Node, bool) {
	return r.node, r.kind != KindMissing
}
