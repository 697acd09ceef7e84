// Package validate checks generated SQL with the PostgreSQL parser.
package validate

import (
	"errors"
	"fmt"
	"regexp"

	pg_query "github.com/pganalyze/pg_query_go/v5"
)

// ErrInvalidSQL marks SQL the PostgreSQL parser rejects or that is not a
// single SELECT statement.
var ErrInvalidSQL = errors.New("invalid generated sql")

// Report describes a parsed statement.
type Report struct {
	Valid       bool   `json:"valid"`
	Error       string `json:"error,omitempty"`
	Recursive   bool   `json:"recursive,omitempty"`
	CTEs        int    `json:"ctes,omitempty"`
	SetOp       bool   `json:"set_operation,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

var pyformat = regexp.MustCompile(`%\((\w+)\)s`)

// normalizePlaceholders rewrites %(name)s placeholders into a form the
// PostgreSQL grammar accepts. $N and @name already parse.
func normalizePlaceholders(sql string) string {
	n := 0
	return pyformat.ReplaceAllStringFunc(sql, func(string) string {
		n++
		return fmt.Sprintf("$%d", n)
	})
}

// Check returns nil when sql is exactly one well-formed SELECT.
func Check(sql string) error {
	r, err := Inspect(sql)
	if err != nil {
		return err
	}
	if !r.Valid {
		return fmt.Errorf("%w: %s", ErrInvalidSQL, r.Error)
	}
	return nil
}

// Inspect parses sql and reports its shape. Parse failures are reported in
// the Report, not as an error; the error is for fingerprinting failures on
// SQL that did parse.
func Inspect(sql string) (*Report, error) {
	text := normalizePlaceholders(sql)
	tree, err := pg_query.Parse(text)
	if err != nil {
		return &Report{Valid: false, Error: err.Error()}, nil
	}
	if len(tree.Stmts) != 1 {
		return &Report{Valid: false, Error: fmt.Sprintf("expected one statement, got %d", len(tree.Stmts))}, nil
	}
	sel := tree.Stmts[0].Stmt.GetSelectStmt()
	if sel == nil {
		return &Report{Valid: false, Error: "statement is not a SELECT"}, nil
	}

	r := &Report{Valid: true, SetOp: sel.Op != pg_query.SetOperation_SETOP_NONE}
	if w := sel.GetWithClause(); w != nil {
		r.Recursive = w.Recursive
		r.CTEs = len(w.Ctes)
	}
	if r.Fingerprint, err = pg_query.Fingerprint(text); err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}
	return r, nil
}
