package translate

import (
	"fmt"
	"strconv"

	"github.com/DeusData/pgraf-cypher/internal/sqlfrag"
)

// PlaceholderStyle selects how bound parameters appear in the SQL text.
type PlaceholderStyle string

const (
	// PlaceholderDollar renders p0 as $1 (lib/pq, pgx).
	PlaceholderDollar PlaceholderStyle = "dollar"
	// PlaceholderNamed renders p0 as @p0 (database/sql named arguments).
	PlaceholderNamed PlaceholderStyle = "named"
	// PlaceholderPyFormat renders p0 as %(p0)s.
	PlaceholderPyFormat PlaceholderStyle = "pyformat"
)

// ParsePlaceholderStyle validates a configured style name.
func ParsePlaceholderStyle(s string) (PlaceholderStyle, error) {
	switch PlaceholderStyle(s) {
	case "", PlaceholderDollar:
		return PlaceholderDollar, nil
	case PlaceholderNamed, PlaceholderPyFormat:
		return PlaceholderStyle(s), nil
	}
	return "", fmt.Errorf("unknown placeholder style %q", s)
}

// Config is fixed at Translator construction.
type Config struct {
	Schema     string
	NodesTable string
	EdgesTable string

	Placeholders PlaceholderStyle

	// CaseInsensitiveMatch lowers CONTAINS / STARTS WITH / ENDS WITH to ILIKE.
	CaseInsensitiveMatch bool

	// MaxPathDepth caps shortest-path recursion.
	MaxPathDepth int
	// DefaultMaxHops bounds variable-length relationships and quantified
	// groups written without an upper bound.
	DefaultMaxHops int
}

const (
	DefaultSchema         = "pgraf"
	DefaultNodesTable     = "nodes"
	DefaultEdgesTable     = "edges"
	DefaultMaxPathDepth   = 10
	DefaultVariableLength = 5
)

// DefaultConfig returns the configuration used when fields are left empty.
func DefaultConfig() Config {
	return Config{
		Schema:         DefaultSchema,
		NodesTable:     DefaultNodesTable,
		EdgesTable:     DefaultEdgesTable,
		Placeholders:   PlaceholderDollar,
		MaxPathDepth:   DefaultMaxPathDepth,
		DefaultMaxHops: DefaultVariableLength,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Schema == "" {
		c.Schema = d.Schema
	}
	if c.NodesTable == "" {
		c.NodesTable = d.NodesTable
	}
	if c.EdgesTable == "" {
		c.EdgesTable = d.EdgesTable
	}
	if c.Placeholders == "" {
		c.Placeholders = d.Placeholders
	}
	if c.MaxPathDepth <= 0 {
		c.MaxPathDepth = d.MaxPathDepth
	}
	if c.DefaultMaxHops <= 0 {
		c.DefaultMaxHops = d.DefaultMaxHops
	}
	return c
}

func (c Config) nodesTable() sqlfrag.Fragment {
	return sqlfrag.Ident(c.Schema, c.NodesTable)
}

func (c Config) edgesTable() sqlfrag.Fragment {
	return sqlfrag.Ident(c.Schema, c.EdgesTable)
}

// placeholderFunc renders placeholders for one result. Dollar numbering
// follows binder order over the names actually present.
func (c Config) placeholderFunc(order map[string]int) sqlfrag.PlaceholderFunc {
	switch c.Placeholders {
	case PlaceholderNamed:
		return sqlfrag.Named("@")
	case PlaceholderPyFormat:
		return sqlfrag.PyFormat
	default:
		return func(name string) string { return "$" + strconv.Itoa(order[name]+1) }
	}
}
