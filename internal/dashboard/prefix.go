package dashboard

import "strings"

// NormalizePrefix turns a configured deployment sub-path into "" or "/x/y".
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || prefix == "/" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimSuffix(prefix, "/")
}

// JoinPrefix places path under an already normalized prefix.
func JoinPrefix(prefix, path string) string {
	if !strings.HasPrefix(path, "/") {
		return prefix + "/" + path
	}
	return prefix + path
}
