// Package translate lowers a parsed Cypher document into PostgreSQL over the
// nodes/edges property-graph schema.
package translate

import (
	"log/slog"

	"github.com/DeusData/pgraf-cypher/internal/cypher"
	"github.com/DeusData/pgraf-cypher/internal/sqlfrag"
)

// Strategy names the SQL shape chosen for one pattern element.
type Strategy string

const (
	StrategySimple        Strategy = "simple"
	StrategyParenthesized Strategy = "parenthesized"
	StrategyRecursive     Strategy = "recursive"
	StrategyShortestPath  Strategy = "shortest_path"
)

// Result is a finished statement.
type Result struct {
	SQL string `json:"sql"`
	// Parameters maps each bound name (p0, p1, ...) to its value. With the
	// named and pyformat styles the name is what SQL embeds; with dollar
	// placeholders use Placeholders or Args.
	Parameters map[string]any `json:"parameters"`
	// Placeholders maps each Parameters key to its text in SQL ($1, @p0,
	// %(p0)s).
	Placeholders map[string]string `json:"placeholders"`
	// Strategies lists the shape chosen for each pattern element, in order.
	Strategies []Strategy `json:"strategies"`
	// Order lists the placeholder names in argument order.
	Order []string `json:"order"`
}

// Args returns the parameter values in positional order: $1 is Args()[0].
// With named placeholders the order follows the p0, p1, ... numbering.
func (r *Result) Args() []any {
	out := make([]any, len(r.Order))
	for i, name := range r.Order {
		out[i] = r.Parameters[name]
	}
	return out
}

// Translator is immutable after New and safe for concurrent use: every
// Translate call builds its own compiler state.
type Translator struct {
	cfg Config
}

// New returns a Translator; zero fields of cfg take their defaults.
func New(cfg Config) *Translator {
	return &Translator{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (t *Translator) Config() Config { return t.cfg }

// Option adjusts a single Translate call.
type Option func(*options)

type options struct {
	params map[string]any
}

// WithParameters supplies values for $name parameters in the query.
func WithParameters(params map[string]any) Option {
	return func(o *options) { o.params = params }
}

// compiler is the per-call state. It is never shared between calls.
type compiler struct {
	cfg        Config
	binder     *Binder
	params     map[string]any
	aliases    *aliasAllocator
	strategies []Strategy
}

// Translate lowers doc into SQL text and its parameters. Errors are
// *cypher.InputError, *cypher.UnsupportedError or *cypher.InvariantError and
// no partial SQL is returned.
func (t *Translator) Translate(doc *cypher.Query, opts ...Option) (*Result, error) {
	if doc == nil {
		return nil, &cypher.InputError{Pos: -1, Msg: "no query document"}
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &compiler{
		cfg:     t.cfg,
		binder:  NewBinder(),
		params:  o.params,
		aliases: newAliasAllocator(doc),
	}
	frag, err := c.compileQuery(doc)
	if err != nil {
		slog.Debug("translate.err", "err", err)
		return nil, err
	}

	res := c.result(frag)
	slog.Debug("translate.done", "strategies", res.Strategies, "params", len(res.Parameters))
	return res, nil
}

// result renders frag. Parameters holds exactly the placeholders that made it
// into the text; dollar numbering follows binder order over those names.
func (c *compiler) result(frag sqlfrag.Fragment) *Result {
	present := frag.Placeholders()
	names := make([]string, 0, len(present))
	byIndex := make(map[int]string, len(present))
	for _, name := range present {
		byIndex[c.binder.Index(name)] = name
	}
	for i := 0; i < c.binder.Len(); i++ {
		if name, ok := byIndex[i]; ok {
			names = append(names, name)
		}
	}

	order := make(map[string]int, len(names))
	params := make(map[string]any, len(names))
	for i, name := range names {
		order[name] = i
		params[name], _ = c.binder.Value(name)
	}
	ph := c.cfg.placeholderFunc(order)
	rendered := make(map[string]string, len(names))
	for _, name := range names {
		rendered[name] = ph(name)
	}
	return &Result{
		SQL:          frag.Render(ph),
		Parameters:   params,
		Placeholders: rendered,
		Strategies:   c.strategies,
		Order:        names,
	}
}
