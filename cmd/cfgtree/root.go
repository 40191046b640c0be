package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"github.com/jacentio/cfgtree/loader"
	"github.com/jacentio/cfgtree/store"
	"github.com/jacentio/cfgtree/tree"
)

// app holds the global flags and the state shared by subcommands.
type app struct {
	// Global flags
	storeKind string
	dsn       string
	treeName  string
	file      string
	jsonOut   bool
	noColor   bool
	verbose   bool

	// DynamoDB flags
	profile      string
	region       string
	endpoint     string
	nodeTable    string
	pointerTable string
	numShards    int
	sweepInline  bool

	logger *slog.Logger
	closer func() error
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&app{})
}

func buildRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cfgtree",
		Short: "Load configuration documents into a queryable tree",
		Long: `cfgtree converts YAML, JSON and HCL configuration documents into a
nested-set tree, persists it, and answers lookups by key, by direct children
and by depth.

Query commands read the stored tree, or load --file first when it is given.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.storeKind, "store", "memory", "Backend: memory, sqlite or dynamodb")
	flags.StringVar(&a.dsn, "dsn", "cfgtree.db", "SQLite database path")
	flags.StringVar(&a.treeName, "tree", store.DefaultTree, "Name of the stored tree")
	flags.StringVarP(&a.file, "file", "f", "", "Load this document before running the command")
	flags.BoolVar(&a.jsonOut, "json", false, "Output in JSON format")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	flags.StringVar(&a.profile, "profile", "", "AWS shared config profile")
	flags.StringVar(&a.region, "region", "", "AWS region")
	flags.StringVar(&a.endpoint, "endpoint", "", "DynamoDB endpoint override, e.g. DynamoDB Local")
	flags.StringVar(&a.nodeTable, "node-table", "", "DynamoDB node table (default cfgtree_nodes)")
	flags.StringVar(&a.pointerTable, "pointer-table", "", "DynamoDB pointer table (default cfgtree_trees)")
	flags.IntVar(&a.numShards, "shards", 1, "DynamoDB shards per generation")
	flags.BoolVar(&a.sweepInline, "sweep", false, "Expire the superseded DynamoDB generation during load")

	cmd.AddCommand(
		newLoadCmd(a),
		newGetCmd(a),
		newChildrenCmd(a),
		newDigCmd(a),
		newShowCmd(a),
		newExportCmd(a),
	)

	// PersistentPostRun is skipped when RunE fails, so close from RunE itself
	for _, sub := range cmd.Commands() {
		runE := sub.RunE
		sub.RunE = func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				err = errors.Join(err, a.close())
			}()
			return runE(cmd, args)
		}
	}
	return cmd
}

// close releases the backend opened by openBackend, if any.
func (a *app) close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer()
	a.closer = nil
	return err
}

// openBackend creates the backend selected by --store.
func (a *app) openBackend(ctx context.Context) (store.Backend, error) {
	switch a.storeKind {
	case "memory":
		return store.NewMemory(), nil

	case "sqlite":
		cfg := store.DefaultSQLiteConfig()
		cfg.Tree = a.treeName
		s, err := store.OpenSQLite(ctx, a.dsn, cfg, a.logger)
		if err != nil {
			return nil, err
		}
		a.closer = s.Close
		return s, nil

	case "dynamodb":
		var opts []func(*config.LoadOptions) error
		if a.profile != "" {
			opts = append(opts, config.WithSharedConfigProfile(a.profile))
		}
		if a.region != "" {
			opts = append(opts, config.WithRegion(a.region))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if a.endpoint != "" {
				o.BaseEndpoint = aws.String(a.endpoint)
			}
		})

		cfg := store.DefaultDynamoConfig()
		cfg.Tree = a.treeName
		if a.nodeTable != "" {
			cfg.NodeTable = a.nodeTable
		}
		if a.pointerTable != "" {
			cfg.PointerTable = a.pointerTable
		}
		cfg.NumShards = a.numShards
		cfg.SweepInline = a.sweepInline
		return store.NewDynamo(client, cfg, a.logger), nil

	default:
		return nil, fmt.Errorf("unknown store %q (want memory, sqlite or dynamodb)", a.storeKind)
	}
}

// loader opens the backend and wraps it in a Loader.
func (a *app) loader(ctx context.Context) (*loader.Loader, error) {
	backend, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	return loader.New(backend, a.logger), nil
}

// currentTree loads --file when given, otherwise restores the stored tree.
func (a *app) currentTree(ctx context.Context) (*tree.Tree, error) {
	l, err := a.loader(ctx)
	if err != nil {
		return nil, err
	}
	if a.file != "" {
		return l.LoadFile(ctx, a.file)
	}
	t, err := l.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("no tree stored for %q, run load or pass --file: %w", a.treeName, err)
	}
	return t, nil
}

// resolve follows path from the root: the first name is searched across the
// whole tree, the rest among direct children. An empty path yields the root.
func resolve(t *tree.Tree, path []string) (tree.Result, error) {
	if len(path) == 0 {
		return t.At(t.Root()), nil
	}
	r := t.Lookup(path...)
	if !r.Found() {
		return r, fmt.Errorf("key %q not found", strings.Join(path, "."))
	}
	return r, nil
}

// output returns where command output goes and whether it is a terminal.
func (a *app) output(cmd *cobra.Command) (io.Writer, bool) {
	w := cmd.OutOrStdout()
	if a.noColor || a.jsonOut {
		return w, false
	}
	f, ok := w.(*os.File)
	return w, ok && isTerminal(f)
}
