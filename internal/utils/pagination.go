// Package utils provides small, layer-neutral helpers.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int and returns def when s is empty or
// unparseable. Used for optional numeric query params such as list limits,
// where a bad value should degrade to the default rather than fail the
// request.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
