// Package utils holds small helpers shared by the HTTP layer.
package utils

import (
	"strconv"
	"strings"
)

// Limit parses a ?limit query value. Blank or malformed input yields def;
// the result is clamped to [1, max].
func Limit(raw string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		n = def
	}
	switch {
	case n < 1:
		return 1
	case max > 0 && n > max:
		return max
	}
	return n
}
