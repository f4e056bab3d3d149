package filters

import (
	"net/url"
	"strings"
)

// Reserved paging parameters, never treated as filter ids.
const (
	ParamLimit  = "limit"
	ParamOffset = "offset"
)

type pair struct {
	key   string
	value string
}

// pairs splits a raw query in document order. url.ParseQuery loses the
// relative order of different keys, which decides the operator when a
// filter appears both with and without a suffix.
func pairs(rawQuery string) []pair {
	rawQuery = strings.TrimPrefix(rawQuery, "?")
	var out []pair
	for rawQuery != "" {
		var chunk string
		chunk, rawQuery, _ = strings.Cut(rawQuery, "&")
		if chunk == "" {
			continue
		}
		key, value, _ := strings.Cut(chunk, "=")
		key, err := url.QueryUnescape(key)
		if err != nil {
			continue
		}
		value, err = url.QueryUnescape(value)
		if err != nil {
			continue
		}
		out = append(out, pair{key: key, value: value})
	}
	return out
}

// IsPaging reports whether key is a reserved paging parameter.
func IsPaging(key string) bool {
	return key == ParamLimit || key == ParamOffset
}

// SplitKey splits "<id>.<op>" on the last dot. A key without a dot has
// no operator.
func SplitKey(key string) (id string, op Operator) {
	dot := strings.LastIndex(key, ".")
	if dot == -1 {
		return key, Operator{}
	}
	return key[:dot], Explicit(key[dot+1:])
}

// encodeKey builds the query key for id under op.
func encodeKey(id string, op Operator, multi bool) string {
	if op.Token() == "" || (multi && op.Is(TokenIn)) {
		return id
	}
	return id + "." + op.Token()
}
