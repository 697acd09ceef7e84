// Package sqlfrag builds SQL text out of typed segments so identifiers,
// string constants and bound parameters are never mixed up with raw SQL.
package sqlfrag

import (
	"strings"
)

type segKind uint8

const (
	segRaw segKind = iota
	segIdent
	segString
	segPlaceholder
)

type segment struct {
	kind  segKind
	text  string
	parts []string // identifier parts, joined with '.'
}

// Fragment is an immutable sequence of segments. The zero value is empty.
type Fragment struct {
	segs []segment
}

// SQL wraps trusted SQL text (keywords, operators, punctuation).
func SQL(text string) Fragment {
	if text == "" {
		return Fragment{}
	}
	return Fragment{segs: []segment{{kind: segRaw, text: text}}}
}

// Ident is a possibly qualified identifier; each part is double-quoted on render.
func Ident(parts ...string) Fragment {
	return Fragment{segs: []segment{{kind: segIdent, parts: append([]string(nil), parts...)}}}
}

// String is a constant string rendered as a quoted SQL literal. Used for
// JSON keys and other translator-controlled constants, never for user values.
func String(s string) Fragment {
	return Fragment{segs: []segment{{kind: segString, text: s}}}
}

// Placeholder references a bound parameter by name.
func Placeholder(name string) Fragment {
	return Fragment{segs: []segment{{kind: segPlaceholder, text: name}}}
}

// Concat joins fragments without separators.
func Concat(frags ...Fragment) Fragment {
	n := 0
	for _, f := range frags {
		n += len(f.segs)
	}
	out := make([]segment, 0, n)
	for _, f := range frags {
		out = append(out, f.segs...)
	}
	return Fragment{segs: out}
}

// Join concatenates frags with sep between them. Empty fragments are skipped.
func Join(sep string, frags []Fragment) Fragment {
	var parts []Fragment
	for _, f := range frags {
		if f.IsEmpty() {
			continue
		}
		if len(parts) > 0 {
			parts = append(parts, SQL(sep))
		}
		parts = append(parts, f)
	}
	return Concat(parts...)
}

// Paren wraps f in parentheses.
func Paren(f Fragment) Fragment {
	return Concat(SQL("("), f, SQL(")"))
}

// IsEmpty reports whether f renders to nothing.
func (f Fragment) IsEmpty() bool {
	for _, s := range f.segs {
		if s.kind != segRaw || strings.TrimSpace(s.text) != "" {
			return false
		}
	}
	return true
}

// Placeholders returns the distinct placeholder names in order of appearance.
func (f Fragment) Placeholders() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range f.segs {
		if s.kind == segPlaceholder && !seen[s.text] {
			seen[s.text] = true
			out = append(out, s.text)
		}
	}
	return out
}

// PlaceholderFunc renders a placeholder name into driver syntax.
type PlaceholderFunc func(name string) string

// Named renders placeholders as prefix+name, e.g. Named("@") gives @p0.
func Named(prefix string) PlaceholderFunc {
	return func(name string) string { return prefix + name }
}

// PyFormat renders placeholders as %(name)s.
func PyFormat(name string) string { return "%(" + name + ")s" }

// Render produces SQL text. Whitespace inside raw segments is collapsed to
// single spaces, also across segment boundaries; identifiers and string
// constants are emitted verbatim inside their quotes.
func (f Fragment) Render(ph PlaceholderFunc) string {
	w := &writer{}
	for _, s := range f.segs {
		switch s.kind {
		case segRaw:
			w.raw(s.text)
		case segIdent:
			quoted := make([]string, len(s.parts))
			for i, p := range s.parts {
				quoted[i] = QuoteIdent(p)
			}
			w.token(strings.Join(quoted, "."))
		case segString:
			w.token(QuoteString(s.text))
		case segPlaceholder:
			w.token(ph(s.text))
		}
	}
	return strings.TrimSpace(w.sb.String())
}

// String renders with :name placeholders, for logs and debugging.
func (f Fragment) String() string {
	return f.Render(Named(":"))
}

// QuoteIdent double-quotes an identifier.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteString single-quotes a string constant.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

type writer struct {
	sb        strings.Builder
	lastSpace bool
}

func (w *writer) raw(text string) {
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			if !w.lastSpace && w.sb.Len() > 0 {
				w.sb.WriteByte(' ')
				w.lastSpace = true
			}
			continue
		}
		w.sb.WriteRune(r)
		w.lastSpace = false
	}
}

func (w *writer) token(text string) {
	w.sb.WriteString(text)
	w.lastSpace = false
}
