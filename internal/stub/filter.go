package stub

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
	"github.com/odyssey-erp/dashclient/internal/filters"
	"github.com/odyssey-erp/dashclient/internal/platform/httpx"
)

type condition struct {
	spec   dashboard.FilterSpec
	op     string
	values []string
}

// implicitOperator resolves a filter sent without a suffix.
func implicitOperator(spec dashboard.FilterSpec) string {
	switch {
	case spec.Type == dashboard.FilterSelectMulti:
		return filters.TokenIn
	case len(spec.Operators) == 1:
		return spec.Operators[0]
	default:
		return filters.TokenEq
	}
}

// parseConditions reads filter conditions from a widget data query.
// Unknown ids and empty values are ignored.
func parseConditions(specs []dashboard.FilterSpec, query url.Values) ([]condition, error) {
	byID := make(map[string]dashboard.FilterSpec, len(specs))
	for _, spec := range specs {
		byID[spec.ID] = spec
	}

	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	var out []condition
	for _, key := range keys {
		if filters.IsPaging(key) {
			continue
		}
		id, op := filters.SplitKey(key)
		spec, ok := byID[id]
		if !ok {
			continue
		}
		values := make([]string, 0, len(query[key]))
		for _, v := range query[key] {
			if v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		token := op.Token()
		if token == "" {
			token = implicitOperator(spec)
		}
		switch token {
		case filters.TokenEq, filters.TokenGt, filters.TokenLt, filters.TokenAfter,
			filters.TokenBefore, filters.TokenContains, filters.TokenIn:
		case filters.TokenBetween:
			if len(values) < 2 {
				return nil, fmt.Errorf("%w: filter %q needs two values for between", httpx.ErrValidation, id)
			}
		default:
			return nil, fmt.Errorf("%w: unknown operator %q for filter %q", httpx.ErrValidation, token, id)
		}
		out = append(out, condition{spec: spec, op: token, values: values})
	}
	return out, nil
}

func (c condition) match(row dashboard.Row) bool {
	target := c.spec.Target
	if target == "" {
		target = c.spec.ID
	}
	v, ok := row[target]
	if !ok {
		return false
	}
	switch c.op {
	case filters.TokenEq:
		return compareValue(v, c.values[0]) == 0
	case filters.TokenIn:
		return slices.ContainsFunc(c.values, func(s string) bool { return compareValue(v, s) == 0 })
	case filters.TokenGt, filters.TokenAfter:
		return compareValue(v, c.values[0]) > 0
	case filters.TokenLt, filters.TokenBefore:
		return compareValue(v, c.values[0]) < 0
	case filters.TokenBetween:
		return compareValue(v, c.values[0]) >= 0 && compareValue(v, c.values[1]) <= 0
	case filters.TokenContains:
		return strings.Contains(strings.ToLower(cursorValue(v)), strings.ToLower(c.values[0]))
	}
	return false
}

func matchAll(row dashboard.Row, conds []condition) bool {
	for _, c := range conds {
		if !c.match(row) {
			return false
		}
	}
	return true
}

// compareValue orders a row value against a query value, numerically when
// both sides are numbers.
func compareValue(v any, s string) int {
	if n, ok := number(v); ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return cmp.Compare(n, f)
		}
	}
	return strings.Compare(cursorValue(v), s)
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}
