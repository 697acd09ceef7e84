package translate

import "strconv"

// Binder hands out placeholder names for literal values. Equal values (same
// type and value) share one placeholder; names are p0, p1, ... in first-use
// order. A Binder belongs to one translation.
type Binder struct {
	names  map[any]string
	index  map[string]int
	values []any
}

// NewBinder returns an empty binder.
func NewBinder() *Binder {
	return &Binder{names: make(map[any]string), index: make(map[string]int)}
}

// Bind returns the placeholder name for v, allocating one on first use.
// v must be comparable: string, bool, int64, float64 or nil.
func (b *Binder) Bind(v any) string {
	if name, ok := b.names[v]; ok {
		return name
	}
	name := "p" + strconv.Itoa(len(b.values))
	b.names[v] = name
	b.index[name] = len(b.values)
	b.values = append(b.values, v)
	return name
}

// Value returns the value bound to name.
func (b *Binder) Value(name string) (any, bool) {
	i, ok := b.index[name]
	if !ok {
		return nil, false
	}
	return b.values[i], true
}

// Index returns the allocation order of name.
func (b *Binder) Index(name string) int {
	i, ok := b.index[name]
	if !ok {
		return -1
	}
	return i
}

// Len is the number of distinct bound values.
func (b *Binder) Len() int { return len(b.values) }

// normalizeValue maps caller-supplied parameter values onto the comparable
// set the binder dedups on.
func normalizeValue(v any) (any, bool) {
	switch x := v.(type) {
	case nil, string, bool, int64, float64:
		return x, true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case float32:
		return float64(x), true
	}
	return nil, false
}
