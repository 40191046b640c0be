package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jacentio/cfgtree/tree"
)

func newChildrenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "children [key...]",
		Short: "List the direct children of a key",
		Long: `The children command lists the direct children of the node a key chain
resolves to, in document order. Without keys it lists the top-level keys.

Example:
  cfgtree children -f application.yaml
  cfgtree children spring datasource --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChildren(cmd, a, args)
		},
	}
}

func runChildren(cmd *cobra.Command, a *app, path []string) error {
	t, err := a.currentTree(cmd.Context())
	if err != nil {
		return err
	}
	r, err := resolve(t, path)
	if err != nil {
		return err
	}

	n, _ := r.Node()
	kids := t.DirectChildren(n)

	w, color := a.output(cmd)
	if a.jsonOut {
		return printJSON(w, nodesJSON(kids))
	}
	return printChildren(w, newPalette(color), kids)
}

// printChildren prints leaves as "name = value" and branches as "name/".
func printChildren(w io.Writer, p palette, nodes []tree.Node) error {
	for _, n := range nodes {
		var err error
		if n.HasValue {
			_, err = fmt.Fprintf(w, "%s = %s\n", p.leaf("%s", n.Name), p.value("%s", n.Value))
		} else {
			_, err = fmt.Fprintf(w, "%s/\n", p.branch("%s", n.Name))
		}
		if err != nil {
			return err
		}
	}
	return nil
}
