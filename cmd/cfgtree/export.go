package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/cfgtree/document"
)

func newExportCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export [key...]",
		Short: "Write the tree back out as a document",
		Long: `The export command renders the tree, or the branch a key chain resolves to,
as YAML, JSON or HCL. Key order is preserved and every value is a string.

Example:
  cfgtree export --store sqlite > application.yaml
  cfgtree export spring --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, a, args, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml, json or hcl")
	return cmd
}

func runExport(cmd *cobra.Command, a *app, path []string, format string) error {
	f, err := document.ParseFormat(format)
	if err != nil {
		return err
	}
	if a.jsonOut {
		f = document.JSON
	}

	t, err := a.currentTree(cmd.Context())
	if err != nil {
		return err
	}
	r, err := resolve(t, path)
	if err != nil {
		return err
	}
	n, _ := r.Node()
	m, ok := t.Subdocument(n)
	if !ok {
		return fmt.Errorf("%q is a leaf, only branches can be exported", n.Name)
	}

	data, err := document.Encode(m, f)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
