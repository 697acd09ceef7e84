package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/DeusData/pgraf-cypher/internal/engine"
	"github.com/DeusData/pgraf-cypher/internal/store"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow)
	headerColor  = color.New(color.FgCyan, color.Bold)
	dimColor     = color.New(color.Faint)
)

func printSuccess(w io.Writer, format string, args ...any) {
	successColor.Fprintf(w, "✓ "+format+"\n", args...)
}

func printFailure(w io.Writer, format string, args ...any) {
	errorColor.Fprintf(w, "✗ "+format+"\n", args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	warnColor.Fprintf(w, "⚠ "+format+"\n", args...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTranslation writes the SQL followed by its parameters and strategies
// as SQL comments, so the output can be piped into psql as is.
func printTranslation(w io.Writer, t *engine.Translation) {
	fmt.Fprintln(w, t.SQL+";")
	for _, name := range t.Order {
		dimColor.Fprintf(w, "-- %s = %s\n", name, formatValue(t.Parameters[name]))
	}
	strategies := make([]string, len(t.Strategies))
	for i, s := range t.Strategies {
		strategies[i] = string(s)
	}
	meta := "-- strategies: " + strings.Join(strategies, ", ")
	if t.CacheHit {
		meta += " (cached)"
	}
	dimColor.Fprintln(w, meta)
}

// printRows renders a result set as an aligned table.
func printRows(w io.Writer, res *store.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	// Escape codes would skew the column widths.
	fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
	dimColor.Fprintf(w, "(%d rows)\n", len(res.Rows))
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return fmt.Sprintf("\\x%x", x)
	case map[string]any, []any, []string:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}
