package tree

import "golang.org/x/text/cases"

// folder is stateless and safe for concurrent use.
var folder = cases.Fold()

// nameIndex maps case-folded names to node indices in Left order.
type nameIndex map[string][]int

// fold returns the caseless form of name.
func fold(name string) string {
	return folder.String(name)
}

// folded returns the folded-name index, building it on first use.
func (t *Tree) folded() nameIndex {
	t.namesOnce.Do(func() {
		idx := make(nameIndex, len(t.nodes))
		for i, n := range t.nodes {
			key := fold(n.Name)
			idx[key] = append(idx[key], i)
		}
		t.names = idx
	})
	return t.names
}
