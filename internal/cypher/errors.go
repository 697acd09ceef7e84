package cypher

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks across the taxonomy.
var (
	ErrInput       = errors.New("invalid query input")
	ErrUnsupported = errors.New("unsupported construct")
	ErrInvariant   = errors.New("translation invariant violated")
)

// InputError reports empty or malformed query text.
type InputError struct {
	Pos int // byte offset, -1 when unknown
	Msg string
}

func (e *InputError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("%s at pos %d", e.Msg, e.Pos)
	}
	return e.Msg
}

func (e *InputError) Unwrap() error { return ErrInput }

func inputErrorf(pos int, format string, args ...any) error {
	return &InputError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedError names a construct the translator has no lowering for.
type UnsupportedError struct {
	Construct string
	Detail    string
}

func (e *UnsupportedError) Error() string {
	if e.Detail == "" {
		return "unsupported " + e.Construct
	}
	return fmt.Sprintf("unsupported %s: %s", e.Construct, e.Detail)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

// Unsupported builds an UnsupportedError.
func Unsupported(construct, format string, args ...any) error {
	return &UnsupportedError{Construct: construct, Detail: fmt.Sprintf(format, args...)}
}

// InvariantError reports a malformed document handed over by a front end.
type InvariantError struct {
	Construct string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.Construct, e.Detail)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// Invariant builds an InvariantError.
func Invariant(construct, format string, args ...any) error {
	return &InvariantError{Construct: construct, Detail: fmt.Sprintf(format, args...)}
}
