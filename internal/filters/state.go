package filters

import (
	"net/url"
	"slices"
	"strings"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
)

// Entry is the state of one filter. Values order matters: for between,
// index 0 is the lower bound; for lists it is entry order.
type Entry struct {
	Operator Operator
	Values   []string
}

// State maps filter ids to their entries.
type State map[string]Entry

// ResolveOperators lists the operators a filter offers, UI default first.
// A declared "eq" becomes the leading Equality operator.
func ResolveOperators(spec dashboard.FilterSpec) []Operator {
	if len(spec.Operators) > 0 {
		hasEq := slices.Contains(spec.Operators, TokenEq)
		ops := make([]Operator, 0, len(spec.Operators))
		if hasEq {
			ops = append(ops, Equality)
		}
		for _, token := range spec.Operators {
			if token == TokenEq {
				continue
			}
			ops = append(ops, Explicit(token))
		}
		return ops
	}
	if spec.Type == dashboard.FilterSelectMulti {
		return []Operator{Explicit(TokenIn)}
	}
	return []Operator{Equality}
}

// DefaultOperator is the first resolved operator of spec.
func DefaultOperator(spec dashboard.FilterSpec) Operator {
	return ResolveOperators(spec)[0]
}

// EmptyState returns the default state: every filter on its default
// operator with no values.
func EmptyState(specs []dashboard.FilterSpec) State {
	state := make(State, len(specs))
	for _, spec := range specs {
		state[spec.ID] = Entry{Operator: DefaultOperator(spec), Values: []string{}}
	}
	return state
}

func index(specs []dashboard.FilterSpec) map[string]dashboard.FilterSpec {
	idx := make(map[string]dashboard.FilterSpec, len(specs))
	for _, spec := range specs {
		idx[spec.ID] = spec
	}
	return idx
}

// ParseParams rebuilds filter state from a raw query string using
// DefaultCodec.
func ParseParams(specs []dashboard.FilterSpec, rawQuery string) State {
	return DefaultCodec.ParseParams(specs, rawQuery)
}

// ParseParams rebuilds filter state from a raw query string. Unknown ids,
// paging keys and empty values are ignored.
func (c Codec) ParseParams(specs []dashboard.FilterSpec, rawQuery string) State {
	idx := index(specs)
	state := EmptyState(specs)
	found := false
	for _, p := range pairs(rawQuery) {
		if IsPaging(p.key) {
			continue
		}
		id, op := SplitKey(p.key)
		spec, ok := idx[id]
		if !ok {
			continue
		}
		found = true
		value := c.Normalize(spec, p.value)
		if value == "" {
			continue
		}
		current := state[id]
		if op.IsSet() {
			current.Operator = op
		}
		current.Values = append(slices.Clip(current.Values), value)
		state[id] = current
	}
	if !found {
		return EmptyState(specs)
	}
	return state
}

// AppendFilters appends the query encoding of state to dst using
// DefaultCodec.
func AppendFilters(dst url.Values, state State, specs []dashboard.FilterSpec) {
	DefaultCodec.AppendFilters(dst, state, specs)
}

// AppendFilters appends the query encoding of state to dst. It never removes
// keys, so dst should be a fresh collection. Filters are emitted in the
// order of specs; entries without a FilterSpec are skipped.
func (c Codec) AppendFilters(dst url.Values, state State, specs []dashboard.FilterSpec) {
	c.eachParam(state, specs, dst.Add)
}

// BuildQuery renders state into rawQuery. Parameters that are neither paging
// nor filters of specs keep their document order and come first, followed
// by the filters in the order of specs.
func (c Codec) BuildQuery(specs []dashboard.FilterSpec, rawQuery string, state State) string {
	var b strings.Builder
	add := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}
	for _, p := range pairs(rawQuery) {
		if IsPaging(p.key) || IsFilterKey(specs, p.key) {
			continue
		}
		add(p.key, p.value)
	}
	c.eachParam(state, specs, add)
	return b.String()
}

func (c Codec) eachParam(state State, specs []dashboard.FilterSpec, add func(key, value string)) {
	for _, spec := range specs {
		entry, ok := state[spec.ID]
		if !ok || len(entry.Values) == 0 {
			continue
		}
		op := entry.Operator
		if !op.IsSet() {
			op = DefaultOperator(spec)
		}
		multi := spec.Type == dashboard.FilterSelectMulti
		key := encodeKey(spec.ID, op, multi)

		if op.Is(TokenBetween) || multi {
			for _, value := range entry.Values {
				if value == "" {
					continue
				}
				if wire := c.Serialize(spec, value); wire != "" {
					add(key, wire)
				}
			}
			continue
		}
		if entry.Values[0] == "" {
			continue
		}
		if wire := c.Serialize(spec, entry.Values[0]); wire != "" {
			add(key, wire)
		}
	}
}

// Encode renders state as a fresh query.
func (c Codec) Encode(state State, specs []dashboard.FilterSpec) url.Values {
	dst := url.Values{}
	c.AppendFilters(dst, state, specs)
	return dst
}

// IsFilterKey reports whether key addresses one of specs, with or without
// an operator suffix.
func IsFilterKey(specs []dashboard.FilterSpec, key string) bool {
	for _, spec := range specs {
		if key == spec.ID || strings.HasPrefix(key, spec.ID+".") {
			return true
		}
	}
	return false
}

// BaseParams keeps the query parameters that belong to neither paging nor
// any of specs.
func BaseParams(specs []dashboard.FilterSpec, rawQuery string) url.Values {
	base := url.Values{}
	for _, p := range pairs(rawQuery) {
		if IsPaging(p.key) || IsFilterKey(specs, p.key) {
			continue
		}
		base.Add(p.key, p.value)
	}
	return base
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := make(State, len(s))
	for id, entry := range s {
		out[id] = Entry{Operator: entry.Operator, Values: slices.Clone(entry.Values)}
	}
	return out
}

// WithOperator returns a copy of s with the operator of id replaced.
func (s State) WithOperator(id string, op Operator) State {
	out := s.Clone()
	entry := out[id]
	entry.Operator = op
	if entry.Values == nil {
		entry.Values = []string{}
	}
	out[id] = entry
	return out
}

// WithValues returns a copy of s with the values of id replaced. Empty
// strings are dropped.
func (s State) WithValues(id string, values ...string) State {
	out := s.Clone()
	entry := out[id]
	kept := make([]string, 0, len(values))
	for _, value := range values {
		if value != "" {
			kept = append(kept, value)
		}
	}
	entry.Values = kept
	out[id] = entry
	return out
}

// WithRange sets the bounds of a between filter. A missing lower bound
// shifts the upper one to index 0, matching the query encoding.
func (s State) WithRange(id, from, to string) State {
	return s.WithOperator(id, Explicit(TokenBetween)).WithValues(id, from, to)
}

// Equal reports whether s and other hold the same entries.
func (s State) Equal(other State) bool {
	if len(s) != len(other) {
		return false
	}
	for id, entry := range s {
		o, ok := other[id]
		if !ok || o.Operator != entry.Operator || !slices.Equal(o.Values, entry.Values) {
			return false
		}
	}
	return true
}
