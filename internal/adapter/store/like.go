package store

import (
	"strings"
)

// normalizePattern makes a pattern without wildcards match as a substring.
func normalizePattern(p string) string {
	if strings.ContainsAny(p, "%_") {
		return p
	}
	return "%" + p + "%"
}

// likeMatch reports whether s matches the SQL LIKE pattern case-insensitively.
// % matches any run of characters and _ exactly one.
func likeMatch(pattern, s string) bool {
	p := []rune(strings.ToLower(normalizePattern(pattern)))
	r := []rune(strings.ToLower(s))

	// Iterative wildcard matching with single-star backtracking.
	pi, si := 0, 0
	star, mark := -1, 0
	for si < len(r) {
		switch {
		case pi < len(p) && (p[pi] == '_' || p[pi] == r[si]):
			pi++
			si++
		case pi < len(p) && p[pi] == '%':
			star, mark = pi, si
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}

func matchesAny(patterns []string, s string) bool {
	for _, p := range patterns {
		if likeMatch(p, s) {
			return true
		}
	}
	return false
}
