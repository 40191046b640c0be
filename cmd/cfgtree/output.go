package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/jacentio/cfgtree/tree"
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// palette colors tree output. The zero palette prints plain text.
type palette struct {
	branch func(string, ...any) string
	leaf   func(string, ...any) string
	value  func(string, ...any) string
	meta   func(string, ...any) string
}

func newPalette(enabled bool) palette {
	if !enabled {
		return palette{branch: fmt.Sprintf, leaf: fmt.Sprintf, value: fmt.Sprintf, meta: fmt.Sprintf}
	}
	colorFunc := func(attrs ...color.Attribute) func(string, ...any) string {
		c := color.New(attrs...)
		c.EnableColor()
		return c.SprintfFunc()
	}
	return palette{
		branch: colorFunc(color.FgBlue, color.Bold),
		leaf:   colorFunc(color.FgCyan),
		value:  colorFunc(color.FgGreen),
		meta:   colorFunc(color.FgHiBlack),
	}
}

// nodeJSON is the JSON form of a node.
type nodeJSON struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Value    *string `json:"value,omitempty"`
	Left     int     `json:"lft"`
	Right    int     `json:"rgt"`
	ParentID int64   `json:"parent_id,omitempty"`
}

func toJSON(n tree.Node) nodeJSON {
	j := nodeJSON{
		ID:       n.ID,
		Name:     n.Name,
		Left:     n.Left,
		Right:    n.Right,
		ParentID: n.ParentID,
	}
	if n.HasValue {
		v := n.Value
		j.Value = &v
	}
	return j
}

func nodesJSON(nodes []tree.Node) []nodeJSON {
	out := make([]nodeJSON, len(nodes))
	for i, n := range nodes {
		out[i] = toJSON(n)
	}
	return out
}

// printJSON outputs data as indented JSON.
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
