package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jacentio/cfgtree/tree"
)

// SQLite is a Backend keeping nested-set rows in a SQL database.
// A tree is replaced inside one transaction.
type SQLite struct {
	db     *sql.DB
	config SQLiteConfig
	logger *slog.Logger
}

// OpenSQLite opens the database at dsn with the modernc.org/sqlite driver and
// creates the schema if needed.
func OpenSQLite(ctx context.Context, dsn string, config SQLiteConfig, logger *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	// One connection keeps in-memory databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := NewSQLite(db, config, logger)
	if err := s.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite wraps an open database. Call Init before first use.
func NewSQLite(db *sql.DB, config SQLiteConfig, logger *slog.Logger) *SQLite {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLite{
		db:     db,
		config: config,
		logger: logger,
	}
}

// Init creates the tables and indexes.
func (s *SQLite) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name       TEXT PRIMARY KEY,
			generation TEXT NOT NULL,
			node_count INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`, s.config.TreesTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			tree        TEXT NOT NULL,
			generation  TEXT NOT NULL,
			id          INTEGER NOT NULL,
			param_name  TEXT NOT NULL CHECK (trim(param_name) <> ''),
			param_value TEXT,
			lft         INTEGER NOT NULL,
			rgt         INTEGER NOT NULL CHECK (lft < rgt),
			parent_id   INTEGER,
			PRIMARY KEY (tree, generation, id)
		)`, s.config.ItemsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_lft ON %[1]s (tree, generation, lft)`, s.config.ItemsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_parent ON %[1]s (tree, generation, parent_id)`, s.config.ItemsTable),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Replace deletes the tree's rows and inserts snap's in a single transaction.
func (s *SQLite) Replace(ctx context.Context, snap Snapshot) (err error) {
	if err := snap.validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE tree = ?`, s.config.ItemsTable),
		s.config.Tree,
	); err != nil {
		return fmt.Errorf("delete rows: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (tree, generation, id, param_name, param_value, lft, rgt, parent_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.config.ItemsTable))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	for _, n := range snap.Nodes {
		var value, parent any
		if n.HasValue {
			value = n.Value
		}
		if !n.IsRoot() {
			parent = n.ParentID
		}
		if _, err = insert.ExecContext(ctx,
			s.config.Tree, snap.Generation, n.ID, n.Name, value, n.Left, n.Right, parent,
		); err != nil {
			return fmt.Errorf("insert node %d: %w", n.ID, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err = tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (name, generation, node_count, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		   generation = excluded.generation,
		   node_count = excluded.node_count,
		   created_at = excluded.created_at,
		   updated_at = excluded.updated_at`, s.config.TreesTable),
		s.config.Tree, snap.Generation, len(snap.Nodes), snap.CreatedAt.UTC().Format(time.RFC3339Nano), now,
	); err != nil {
		return fmt.Errorf("update pointer: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("tree replaced",
		"tree", s.config.Tree,
		"generation", snap.Generation,
		"nodeCount", len(snap.Nodes),
	)
	return nil
}

// Current reads the tree's rows in nested-set order.
func (s *SQLite) Current(ctx context.Context) (Snapshot, error) {
	var (
		snap      Snapshot
		nodeCount int
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT generation, node_count, created_at FROM %s WHERE name = ?`, s.config.TreesTable),
		s.config.Tree,
	).Scan(&snap.Generation, &nodeCount, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read pointer: %w", err)
	}
	snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, param_name, param_value, lft, rgt, parent_id FROM %s
		 WHERE tree = ? AND generation = ? ORDER BY lft`, s.config.ItemsTable),
		s.config.Tree, snap.Generation,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			n      tree.Node
			value  sql.NullString
			parent sql.NullInt64
		)
		if err := rows.Scan(&n.ID, &n.Name, &value, &n.Left, &n.Right, &parent); err != nil {
			return Snapshot{}, fmt.Errorf("scan row: %w", err)
		}
		n.Value, n.HasValue = value.String, value.Valid
		n.ParentID = parent.Int64
		snap.Nodes = append(snap.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("query rows: %w", err)
	}

	if len(snap.Nodes) != nodeCount {
		return Snapshot{}, fmt.Errorf("%w: generation %s has %d of %d rows",
			ErrInvalidSnapshot, snap.Generation, len(snap.Nodes), nodeCount)
	}
	return snap, nil
}
