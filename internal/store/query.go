package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// Executor runs translated statements.
type Executor interface {
	Query(ctx context.Context, query string, args ...any) (*Result, error)
	Stream(ctx context.Context, query string, args []any, fn func(columns []string, row []any) error) error
}

var _ Executor = (*Store)(nil)

// Result is a fully materialized result set with decoded values: jsonb
// becomes map/slice values, text[] and uuid[] become []string.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Query runs query and collects every row.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	res := &Result{}
	err := s.Stream(ctx, query, args, func(columns []string, row []any) error {
		if res.Columns == nil {
			res.Columns = columns
		}
		res.Rows = append(res.Rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Stream runs query and calls fn once per row. Returning an error from fn
// stops the iteration and is returned as is.
func (s *Store) Stream(ctx context.Context, query string, args []any, fn func(columns []string, row []any) error) error {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return fmt.Errorf("column types: %w", err)
	}
	dbTypes := make([]string, len(types))
	for i, t := range types {
		dbTypes[i] = t.DatabaseTypeName()
	}

	for rows.Next() {
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		row := make([]any, len(columns))
		for i, v := range raw {
			row[i] = decodeValue(dbTypes[i], v)
		}
		if err := fn(columns, row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}
	return nil
}

// decodeValue converts the driver's raw bytes for a column of type dbType
// into a plain Go value.
func decodeValue(dbType string, v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	switch dbType {
	case "JSON", "JSONB":
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			return string(b)
		}
		return out
	case "_TEXT", "_VARCHAR", "_UUID", "_NAME":
		var arr pq.StringArray
		if err := arr.Scan(b); err != nil {
			return string(b)
		}
		return []string(arr)
	case "_INT2", "_INT4", "_INT8":
		var arr pq.Int64Array
		if err := arr.Scan(b); err != nil {
			return string(b)
		}
		return []int64(arr)
	case "_FLOAT4", "_FLOAT8":
		var arr pq.Float64Array
		if err := arr.Scan(b); err != nil {
			return string(b)
		}
		return []float64(arr)
	case "_BOOL":
		var arr pq.BoolArray
		if err := arr.Scan(b); err != nil {
			return string(b)
		}
		return []bool(arr)
	case "BYTEA":
		return b
	}
	return string(b)
}
