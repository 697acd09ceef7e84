// Package store is the PostgreSQL side of pgraf-cypher: it owns the
// nodes/edges schema, seeds graph data and executes translated statements.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Querier abstracts *sql.DB and *sql.Tx so store methods work in both contexts.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Layout names the schema and tables the graph lives in.
type Layout struct {
	Schema     string
	NodesTable string
	EdgesTable string
}

func (l Layout) withDefaults() Layout {
	if l.Schema == "" {
		l.Schema = "pgraf"
	}
	if l.NodesTable == "" {
		l.NodesTable = "nodes"
	}
	if l.EdgesTable == "" {
		l.EdgesTable = "edges"
	}
	return l
}

func (l Layout) nodes() string {
	return pq.QuoteIdentifier(l.Schema) + "." + pq.QuoteIdentifier(l.NodesTable)
}

func (l Layout) edges() string {
	return pq.QuoteIdentifier(l.Schema) + "." + pq.QuoteIdentifier(l.EdgesTable)
}

// Options configures the connection pool.
type Options struct {
	Layout          Layout
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store wraps a PostgreSQL connection pool holding the property graph.
type Store struct {
	db     *sql.DB
	q      Querier // active querier: db or tx
	layout Layout
}

// Node is a row of the nodes table.
type Node struct {
	ID         string         `json:"id" yaml:"id"`
	Labels     []string       `json:"labels" yaml:"labels"`
	Properties map[string]any `json:"properties" yaml:"properties"`
	Mimetype   string         `json:"mimetype,omitempty" yaml:"mimetype,omitempty"`
	Content    string         `json:"content,omitempty" yaml:"content,omitempty"`
}

// Edge is a row of the edges table. Labels holds the relationship types.
type Edge struct {
	ID         string         `json:"id" yaml:"id"`
	Source     string         `json:"source" yaml:"source"`
	Target     string         `json:"target" yaml:"target"`
	Labels     []string       `json:"labels" yaml:"labels"`
	Properties map[string]any `json:"properties" yaml:"properties"`
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open db: no database url configured")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	slog.Debug("store.open", "schema", opts.Layout.withDefaults().Schema)
	return New(db, opts.Layout), nil
}

// New wraps an existing pool.
func New(db *sql.DB, layout Layout) *Store {
	return &Store{db: db, q: db, layout: layout.withDefaults()}
}

// WithTransaction executes fn within a single transaction. The callback
// receives a transaction-scoped Store; the receiver keeps using the pool.
func (s *Store) WithTransaction(ctx context.Context, fn func(txStore *Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx, layout: s.layout}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Layout returns the schema and table names in use.
func (s *Store) Layout() Layout {
	return s.layout
}

// InitSchema creates the schema, both tables and their indexes if missing.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := pq.QuoteIdentifier(s.layout.Schema)
	nodes, edges := s.layout.nodes(), s.layout.edges()
	idx := func(name string) string {
		return pq.QuoteIdentifier(s.layout.NodesTable + "_" + name)
	}
	eidx := func(name string) string {
		return pq.QuoteIdentifier(s.layout.EdgesTable + "_" + name)
	}

	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + schema,
		`CREATE TABLE IF NOT EXISTS ` + nodes + ` (
			id uuid PRIMARY KEY,
			labels text[] NOT NULL DEFAULT '{}',
			properties jsonb NOT NULL DEFAULT '{}',
			mimetype text,
			content text
		)`,
		`CREATE TABLE IF NOT EXISTS ` + edges + ` (
			id uuid PRIMARY KEY,
			source uuid NOT NULL REFERENCES ` + nodes + `(id) ON DELETE CASCADE,
			target uuid NOT NULL REFERENCES ` + nodes + `(id) ON DELETE CASCADE,
			labels text[] NOT NULL DEFAULT '{}',
			properties jsonb NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS ` + idx("labels") + ` ON ` + nodes + ` USING gin (labels)`,
		`CREATE INDEX IF NOT EXISTS ` + idx("properties") + ` ON ` + nodes + ` USING gin (properties)`,
		`CREATE INDEX IF NOT EXISTS ` + eidx("source") + ` ON ` + edges + ` (source)`,
		`CREATE INDEX IF NOT EXISTS ` + eidx("target") + ` ON ` + edges + ` (target)`,
		`CREATE INDEX IF NOT EXISTS ` + eidx("labels") + ` ON ` + edges + ` USING gin (labels)`,
	}
	for _, stmt := range stmts {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	slog.Info("store.schema.ready", "schema", s.layout.Schema, "nodes", s.layout.NodesTable, "edges", s.layout.EdgesTable)
	return nil
}

// marshalProps serializes properties to JSON.
func marshalProps(props map[string]any) string {
	if props == nil {
		return "{}"
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func unmarshalProps(data []byte) map[string]any {
	if len(data) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}
