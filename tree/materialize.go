package tree

import (
	"fmt"
	"sort"
	"strings"
)

// draft is a node that has been linked to its parent but not yet numbered.
type draft struct {
	name     string
	value    string
	leaf     bool
	depth    int
	children []int
}

// Materialize links a depth-ordered staged list into a Tree. Each staged node
// is created exactly once; repeated staged IDs reuse the first node. Nested-set
// bounds are assigned in a single depth-first pass once every edge is known.
func Materialize(staged []StagedNode) (*Tree, error) {
	if len(staged) == 0 {
		return nil, fmt.Errorf("%w: staged list is empty", ErrInvalidDocument)
	}

	rootAt := -1
	for i, s := range staged {
		if s.Parent != NoParent {
			continue
		}
		if rootAt >= 0 && staged[rootAt].ID != s.ID {
			return nil, fmt.Errorf("%w: staged nodes %d and %d both lack a parent", ErrOrphanNode, staged[rootAt].ID, s.ID)
		}
		rootAt = i
	}
	if rootAt < 0 {
		return nil, fmt.Errorf("%w: staged list has no root", ErrOrphanNode)
	}

	root := staged[rootAt]
	if strings.TrimSpace(root.Name) == "" {
		return nil, fmt.Errorf("%w: root", ErrBlankName)
	}
	drafts := []draft{{name: root.Name, value: root.Value, leaf: root.Leaf, depth: root.Depth}}
	created := map[int]int{root.ID: 0}

	byDepth := make(map[int][]StagedNode)
	var depths []int
	for _, s := range staged {
		if _, seen := byDepth[s.Depth]; !seen {
			depths = append(depths, s.Depth)
		}
		byDepth[s.Depth] = append(byDepth[s.Depth], s)
	}
	sort.Ints(depths)

	for _, depth := range depths {
		for _, s := range byDepth[depth] {
			if _, ok := created[s.ID]; ok {
				continue
			}
			p, ok := created[s.Parent]
			if !ok {
				return nil, fmt.Errorf("%w: node %d (%q) references parent %d", ErrOrphanNode, s.ID, s.Name, s.Parent)
			}
			if drafts[p].depth != s.Depth-1 {
				return nil, fmt.Errorf("%w: node %d (%q) at depth %d under parent at depth %d",
					ErrOrphanNode, s.ID, s.Name, s.Depth, drafts[p].depth)
			}
			if drafts[p].leaf {
				return nil, fmt.Errorf("%w: node %d (%q) attaches to leaf %q", ErrOrphanNode, s.ID, s.Name, drafts[p].name)
			}
			if strings.TrimSpace(s.Name) == "" {
				return nil, fmt.Errorf("%w: staged node %d under %q", ErrBlankName, s.ID, drafts[p].name)
			}

			created[s.ID] = len(drafts)
			drafts[p].children = append(drafts[p].children, len(drafts))
			drafts = append(drafts, draft{name: s.Name, value: s.Value, leaf: s.Leaf, depth: s.Depth})
		}
	}

	if len(drafts[0].children) == 0 {
		return nil, fmt.Errorf("%w: document has no keys", ErrInvalidDocument)
	}

	return newTree(number(drafts))
}

// number assigns nested-set bounds and IDs in one pre-order walk. IDs follow
// pre-order, so ID order matches Left order.
func number(drafts []draft) []Node {
	nodes := make([]Node, 0, len(drafts))
	ids := make([]int64, len(drafts))

	type frame struct {
		at   int // index into drafts
		node int // index into nodes
		next int // next child to visit
	}

	counter := 1
	visit := func(at int, parentID int64) frame {
		d := drafts[at]
		ids[at] = int64(len(nodes) + 1)
		n := Node{ID: ids[at], Name: d.name, Left: counter, ParentID: parentID}
		if len(d.children) == 0 {
			n.HasValue = true
			n.Value = d.value
		}
		counter++
		nodes = append(nodes, n)
		return frame{at: at, node: len(nodes) - 1}
	}

	stack := []frame{visit(0, 0)}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		kids := drafts[top.at].children
		if top.next < len(kids) {
			child := kids[top.next]
			top.next++
			stack = append(stack, visit(child, ids[top.at]))
			continue
		}
		nodes[top.node].Right = counter
		counter++
		stack = stack[:len(stack)-1]
	}
	return nodes
}
