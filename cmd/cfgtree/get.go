package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/cfgtree/tree"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key> [child...]",
		Short: "Look up a key",
		Long: `The get command resolves a chain of keys. The first key is matched anywhere
in the tree, ignoring case; when several nodes match, the one with the widest
subtree wins. Each following key must be a direct child of the previous match.

Leaves print their value, branches print their direct children.

Example:
  cfgtree get port -f application.yaml
  cfgtree get datasource url --store sqlite`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, a, args)
		},
	}
}

func runGet(cmd *cobra.Command, a *app, path []string) error {
	t, err := a.currentTree(cmd.Context())
	if err != nil {
		return err
	}
	r, err := resolve(t, path)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	n, _ := r.Node()
	if a.jsonOut {
		out := map[string]any{
			"kind": r.Kind().String(),
			"node": toJSON(n),
		}
		if r.Kind() == tree.KindBranch {
			out["children"] = nodesJSON(t.DirectChildren(n))
		}
		return printJSON(w, out)
	}

	if v, ok := r.Leaf(); ok {
		_, err := fmt.Fprintln(w, v)
		return err
	}
	return printChildren(w, newPalette(false), t.DirectChildren(n))
}
