// Package engine ties parsing, translation, validation, caching, history and
// execution together. Everything but the translator is optional.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/DeusData/pgraf-cypher/internal/cache"
	"github.com/DeusData/pgraf-cypher/internal/cypher"
	"github.com/DeusData/pgraf-cypher/internal/history"
	"github.com/DeusData/pgraf-cypher/internal/store"
	"github.com/DeusData/pgraf-cypher/internal/translate"
	"github.com/DeusData/pgraf-cypher/internal/validate"
)

// ErrNoExecutor is returned by Execute and Stream on an engine without a
// database.
var ErrNoExecutor = errors.New("no database configured")

// Engine is safe for concurrent use.
type Engine struct {
	tr          *translate.Translator
	cache       cache.Cache
	history     *history.Log
	exec        store.Executor
	validate    bool
	concurrency int
	group       singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

func WithCache(c cache.Cache) Option { return func(e *Engine) { e.cache = c } }

func WithHistory(h *history.Log) Option { return func(e *Engine) { e.history = h } }

func WithExecutor(x store.Executor) Option { return func(e *Engine) { e.exec = x } }

// WithValidation parses every fresh translation with the PostgreSQL parser.
func WithValidation(on bool) Option { return func(e *Engine) { e.validate = on } }

// WithConcurrency bounds TranslateBatch.
func WithConcurrency(n int) Option { return func(e *Engine) { e.concurrency = n } }

// New returns an Engine around tr.
func New(tr *translate.Translator, opts ...Option) *Engine {
	e := &Engine{tr: tr, concurrency: 8}
	for _, opt := range opts {
		opt(e)
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	return e
}

// Translation is a translated query plus how it was obtained.
type Translation struct {
	*translate.Result
	Fingerprint string        `json:"fingerprint,omitempty"`
	CacheHit    bool          `json:"cache_hit"`
	Duration    time.Duration `json:"duration"`
}

type compiled struct {
	res         *translate.Result
	fingerprint string
}

// Translate parses and translates text. Identical concurrent requests share
// one translation.
func (e *Engine) Translate(ctx context.Context, text string, params map[string]any) (*Translation, error) {
	start := time.Now()
	key := cache.Key(text, params, e.tr.Config())

	out := &Translation{}
	var err error
	if e.cache != nil {
		if res, ok := e.cache.Get(ctx, key); ok {
			out.Result, out.CacheHit = res, true
		}
	}
	if out.Result == nil {
		var c *compiled
		c, err = e.compileShared(ctx, key, text, params)
		if err == nil {
			out.Result, out.Fingerprint = c.res, c.fingerprint
		}
	}
	out.Duration = time.Since(start)
	e.record(ctx, text, params, out, err)
	if err != nil {
		slog.Debug("engine.translate.err", "err", err)
		return nil, err
	}
	slog.Debug("engine.translate", "strategies", out.Strategies, "cache_hit", out.CacheHit, "dur", out.Duration)
	return out, nil
}

func (e *Engine) compileShared(ctx context.Context, key, text string, params map[string]any) (*compiled, error) {
	if key == "" {
		return e.compile(ctx, key, text, params)
	}
	v, err, shared := e.group.Do(key, func() (any, error) {
		return e.compile(ctx, key, text, params)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("engine.translate.shared")
	}
	return v.(*compiled), nil
}

func (e *Engine) compile(ctx context.Context, key, text string, params map[string]any) (*compiled, error) {
	doc, err := cypher.Parse(text)
	if err != nil {
		return nil, err
	}
	res, err := e.tr.Translate(doc, translate.WithParameters(params))
	if err != nil {
		return nil, err
	}
	c := &compiled{res: res}
	if e.validate {
		report, err := validate.Inspect(res.SQL)
		if err != nil {
			return nil, err
		}
		if !report.Valid {
			return nil, fmt.Errorf("%w: %s", validate.ErrInvalidSQL, report.Error)
		}
		c.fingerprint = report.Fingerprint
	}
	if e.cache != nil {
		e.cache.Set(ctx, key, res)
	}
	return c, nil
}

func (e *Engine) record(ctx context.Context, text string, params map[string]any, t *Translation, err error) {
	if e.history == nil {
		return
	}
	entry := &history.Entry{
		Query:    text,
		Params:   params,
		Duration: t.Duration,
		CacheHit: t.CacheHit,
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.SQL = t.SQL
		entry.Fingerprint = t.Fingerprint
		for _, s := range t.Strategies {
			entry.Strategies = append(entry.Strategies, string(s))
		}
	}
	if _, herr := e.history.Record(ctx, entry); herr != nil {
		slog.Warn("engine.history", "err", herr)
	}
}

// BatchItem is the outcome for one query of a batch.
type BatchItem struct {
	Query       string       `json:"query"`
	Translation *Translation `json:"translation,omitempty"`
	Err         error        `json:"-"`
}

// TranslateBatch translates texts concurrently. Per-query failures are
// reported on their item; the returned error is only set when ctx ends.
func (e *Engine) TranslateBatch(ctx context.Context, texts []string) ([]BatchItem, error) {
	items := make([]BatchItem, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := e.Translate(gctx, text, nil)
			items[i] = BatchItem{Query: text, Translation: t, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	slog.Info("engine.batch", "queries", len(texts))
	return items, nil
}

// Execution is a translated query and its rows.
type Execution struct {
	Translation *Translation  `json:"translation"`
	Result      *store.Result `json:"result"`
}

// Execute translates text and runs it.
func (e *Engine) Execute(ctx context.Context, text string, params map[string]any) (*Execution, error) {
	if err := e.canExecute(); err != nil {
		return nil, err
	}
	t, err := e.Translate(ctx, text, params)
	if err != nil {
		return nil, err
	}
	res, err := e.exec.Query(ctx, t.SQL, t.Args()...)
	if err != nil {
		return nil, err
	}
	slog.Info("engine.execute", "rows", len(res.Rows), "strategies", t.Strategies)
	return &Execution{Translation: t, Result: res}, nil
}

// Stream translates text and passes each row to fn.
func (e *Engine) Stream(ctx context.Context, text string, params map[string]any, fn func(columns []string, row []any) error) error {
	if err := e.canExecute(); err != nil {
		return err
	}
	t, err := e.Translate(ctx, text, params)
	if err != nil {
		return err
	}
	return e.exec.Stream(ctx, t.SQL, t.Args(), fn)
}

func (e *Engine) canExecute() error {
	if e.exec == nil {
		return ErrNoExecutor
	}
	if style := e.tr.Config().Placeholders; style != translate.PlaceholderDollar {
		return fmt.Errorf("execute needs dollar placeholders, configured %q", style)
	}
	return nil
}

// History returns the translation log, or nil.
func (e *Engine) History() *history.Log { return e.history }

// CacheStats reports cache statistics; ok is false without a cache.
func (e *Engine) CacheStats() (cache.Stats, bool) {
	if e.cache == nil {
		return cache.Stats{}, false
	}
	return e.cache.Stats(), true
}

// Config returns the translator configuration.
func (e *Engine) Config() translate.Config { return e.tr.Config() }
