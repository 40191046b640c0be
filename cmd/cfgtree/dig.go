package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newDigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dig <levels>",
		Short: "List nodes level by level",
		Long: `The dig command walks the tree breadth first and prints the nodes of levels
1 through <levels>, one line per level. Levels beyond the tree's depth are
printed empty.

Example:
  cfgtree dig 2 -f application.yaml
  cfgtree dig 3 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDig(cmd, a, args[0])
		},
	}
}

func runDig(cmd *cobra.Command, a *app, arg string) error {
	levels, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("levels must be a number: %w", err)
	}

	t, err := a.currentTree(cmd.Context())
	if err != nil {
		return err
	}
	byLevel, err := t.Dig(levels)
	if err != nil {
		return err
	}

	w, color := a.output(cmd)
	if a.jsonOut {
		out := make(map[int][]nodeJSON, len(byLevel))
		for level, nodes := range byLevel {
			out[level] = nodesJSON(nodes)
		}
		return printJSON(w, out)
	}

	p := newPalette(color)
	for level := 1; level <= levels; level++ {
		names := make([]string, len(byLevel[level]))
		for i, n := range byLevel[level] {
			if n.HasValue {
				names[i] = p.leaf("%s", n.Name)
			} else {
				names[i] = p.branch("%s", n.Name)
			}
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", p.meta("%d:", level), strings.Join(names, " ")); err != nil {
			return err
		}
	}
	return nil
}
