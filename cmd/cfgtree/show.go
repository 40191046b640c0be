package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jacentio/cfgtree/tree"
)

func newShowCmd(a *app) *cobra.Command {
	var (
		depth     int
		nestedSet bool
	)
	cmd := &cobra.Command{
		Use:   "show [key...]",
		Short: "Display the tree",
		Long: `The show command draws the tree, or the subtree a key chain resolves to.

Example:
  cfgtree show -f application.yaml
  cfgtree show spring --depth 1
  cfgtree show --nested-set`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, a, args, depth, nestedSet)
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 0, "Maximum depth below the start node (0 = unlimited)")
	cmd.Flags().BoolVar(&nestedSet, "nested-set", false, "Show each node's id and lft/rgt bounds")
	return cmd
}

func runShow(cmd *cobra.Command, a *app, path []string, depth int, nestedSet bool) error {
	t, err := a.currentTree(cmd.Context())
	if err != nil {
		return err
	}
	r, err := resolve(t, path)
	if err != nil {
		return err
	}
	start, _ := r.Node()

	w, color := a.output(cmd)
	if a.jsonOut {
		return printJSON(w, nodesJSON(append([]tree.Node{start}, t.Descendants(start)...)))
	}

	s := &shower{w: w, t: t, p: newPalette(color), depth: depth, nestedSet: nestedSet}
	if _, err := fmt.Fprintln(w, s.label(start)); err != nil {
		return err
	}
	return s.children(start, "", 1)
}

// shower draws a subtree with box-drawing characters.
type shower struct {
	w         io.Writer
	t         *tree.Tree
	p         palette
	depth     int
	nestedSet bool
}

func (s *shower) children(n tree.Node, prefix string, level int) error {
	if s.depth > 0 && level > s.depth {
		return nil
	}
	kids := s.t.DirectChildren(n)
	for i, c := range kids {
		branch, indent := "├── ", "│   "
		if i == len(kids)-1 {
			branch, indent = "└── ", "    "
		}
		if _, err := fmt.Fprintf(s.w, "%s%s%s\n", prefix, branch, s.label(c)); err != nil {
			return err
		}
		if err := s.children(c, prefix+indent, level+1); err != nil {
			return err
		}
	}
	return nil
}

func (s *shower) label(n tree.Node) string {
	var label string
	if n.HasValue {
		label = fmt.Sprintf("%s = %s", s.p.leaf("%s", n.Name), s.p.value("%q", n.Value))
	} else {
		label = s.p.branch("%s", n.Name)
	}
	if s.nestedSet {
		label += " " + s.p.meta("#%d [%d,%d]", n.ID, n.Left, n.Right)
	}
	return label
}
