package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DeusData/pgraf-cypher/internal/config"
	"github.com/DeusData/pgraf-cypher/internal/engine"
	"github.com/DeusData/pgraf-cypher/internal/watcher"
)

// queryFlags are the input flags shared by translate and query.
type queryFlags struct {
	files  []string
	params []string
	json   bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.files, "file", "f", nil, "read the query from a file (repeat to translate a batch)")
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "bind a $parameter: name=value, value parsed as JSON when possible")
	cmd.Flags().BoolVar(&f.json, "json", false, "print JSON instead of text")
}

// query returns the single query given as argument or through one -f.
func (f *queryFlags) query(args []string) (string, error) {
	switch {
	case len(args) > 0 && len(f.files) > 0:
		return "", errors.New("give the query as an argument or with --file, not both")
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case len(f.files) == 1:
		return config.ReadQueryFile(f.files[0])
	case len(f.files) > 1:
		return "", errors.New("only one --file is accepted here")
	}
	return "", errors.New("no query given")
}

func newTranslateCmd(a *app) *cobra.Command {
	var flags queryFlags
	var watchDir string
	cmd := &cobra.Command{
		Use:   "translate [query]",
		Short: "Translate a Cypher query to SQL",
		Long: `Translate a Cypher query to a parameterized PostgreSQL statement.

The query is read from the arguments or from --file. Several --file flags
translate the files concurrently. --watch re-translates every *.cypher file
in a directory whenever it changes.`,
		Example: `  pgraf-cypher translate "MATCH (a:Person)-[:KNOWS]->(b) RETURN b.name"
  pgraf-cypher translate -p name='"Ada"' "MATCH (a {name: \$name}) RETURN a"
  pgraf-cypher translate -f q1.cypher -f q2.cypher --json
  pgraf-cypher translate --watch ./queries`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			e, _, err := a.engine(cmd, false)
			if err != nil {
				return err
			}
			params, err := parseParams(flags.params)
			if err != nil {
				return err
			}
			switch {
			case watchDir != "":
				return runWatch(cmd, e, watchDir, params, flags.json)
			case len(args) == 0 && len(flags.files) > 1:
				return runBatch(cmd, e, flags.files, flags.json)
			}
			query, err := flags.query(args)
			if err != nil {
				return err
			}
			t, err := e.Translate(cmd.Context(), query, params)
			if err != nil {
				return err
			}
			if flags.json {
				return printJSON(cmd.OutOrStdout(), t)
			}
			printTranslation(cmd.OutOrStdout(), t)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&watchDir, "watch", "w", "", "watch a directory of *.cypher files")
	return cmd
}

// batchOutput is one file of a --json batch.
type batchOutput struct {
	File string `json:"file"`
	engine.BatchItem
	Error string `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, e *engine.Engine, files []string, asJSON bool) error {
	texts := make([]string, len(files))
	for i, f := range files {
		q, err := config.ReadQueryFile(f)
		if err != nil {
			return err
		}
		texts[i] = q
	}
	items, err := e.TranslateBatch(cmd.Context(), texts)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	failed := 0
	out := make([]batchOutput, len(items))
	for i, it := range items {
		out[i] = batchOutput{File: files[i], BatchItem: it}
		if it.Err != nil {
			failed++
			out[i].Error = it.Err.Error()
		}
	}
	if asJSON {
		if err := printJSON(w, out); err != nil {
			return err
		}
	} else {
		for _, o := range out {
			headerColor.Fprintf(w, "-- %s\n", o.File)
			if o.Err != nil {
				printFailure(w, "%v", o.Err)
				continue
			}
			printTranslation(w, o.Translation)
			fmt.Fprintln(w)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(files))
	}
	return nil
}

// runWatch blocks until interrupted, printing a fresh translation whenever a
// query file changes.
func runWatch(cmd *cobra.Command, e *engine.Engine, dir string, params map[string]any, asJSON bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := cmd.OutOrStdout()
	wt, err := watcher.New(dir, func(ctx context.Context, path, query string) error {
		t, err := e.Translate(ctx, query, params)
		if err != nil {
			printFailure(w, "%s: %v", path, err)
			return err
		}
		if asJSON {
			return printJSON(w, map[string]any{"file": path, "translation": t})
		}
		headerColor.Fprintf(w, "-- %s\n", path)
		printTranslation(w, t)
		fmt.Fprintln(w)
		return nil
	})
	if err != nil {
		return err
	}
	printSuccess(cmd.ErrOrStderr(), "watching %s for *%s changes (Ctrl-C to stop)", dir, watcher.Ext)
	return wt.Run(ctx)
}

// parseParams turns name=value pairs into translator parameters. Values are
// decoded as JSON when they parse, otherwise taken as plain strings.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		name = strings.TrimPrefix(strings.TrimSpace(name), "$")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q: want name=value", p)
		}
		dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil || dec.More() {
			out[name] = raw
			continue
		}
		out[name] = numbers(v)
	}
	return out, nil
}

// numbers replaces json.Number values with int64 or float64.
func numbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = numbers(x[i])
		}
	case map[string]any:
		for k := range x {
			x[k] = numbers(x[k])
		}
	}
	return v
}
