// Package filters maps declarative filter specs to editable state and keeps
// that state in sync with URL query parameters.
package filters

// Operator tokens understood by the data endpoint.
const (
	TokenEq       = "eq"
	TokenGt       = "gt"
	TokenLt       = "lt"
	TokenAfter    = "after"
	TokenBefore   = "before"
	TokenContains = "contains"
	TokenBetween  = "between"
	TokenIn       = "in"
)

// Operator qualifies how the values of a filter combine. The zero value is
// unset; Equality is the implicit operator that never shows up as a query
// key suffix; everything else is an explicit token.
type Operator struct {
	token string
	set   bool
}

// Equality is the implicit default operator.
var Equality = Operator{set: true}

// Explicit returns the operator for a key suffix. An empty token is Equality.
func Explicit(token string) Operator {
	if token == "" {
		return Equality
	}
	return Operator{token: token, set: true}
}

// Token returns the key suffix, empty for Equality and unset operators.
func (o Operator) Token() string { return o.token }

// IsSet reports whether an operator was chosen at all.
func (o Operator) IsSet() bool { return o.set }

// IsImplicit reports whether o is Equality.
func (o Operator) IsImplicit() bool { return o.set && o.token == "" }

// Is reports whether o is the explicit token.
func (o Operator) Is(token string) bool { return o.set && o.token == token }

// Label is the operator caption shown next to a filter input.
func (o Operator) Label() string {
	if o.token == "" {
		return "is"
	}
	return o.token
}

func (o Operator) String() string {
	switch {
	case !o.set:
		return "<unset>"
	case o.token == "":
		return "<eq>"
	default:
		return o.token
	}
}
