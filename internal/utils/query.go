// Package utils provides small parsing helpers for query parameters. They
// carry no domain rules; callers pass their own defaults and bounds.
package utils

import "strconv"

// AtoiDefault converts s with strconv.Atoi and returns def when s is empty or
// not an integer. Surrounding whitespace is not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// ParsePage reads 1-based page and page size values. Unparseable input falls
// back to page 1 and defSize; the size is bounded to [1, maxSize].
func ParsePage(rawPage, rawSize string, defSize, maxSize int) (page, size int) {
	page = AtoiDefault(rawPage, 1)
	if page < 1 {
		page = 1
	}
	size = Clamp(AtoiDefault(rawSize, defSize), 1, maxSize)
	return page, size
}
