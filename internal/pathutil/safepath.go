// Package pathutil holds small request-path checks shared by the transport
// layer. Route canonicalization itself lives in internal/route.
package pathutil

import "strings"

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// Unprintable reports whether p contains NUL or backslash characters,
// which never appear in legitimate route lookups.
func Unprintable(p string) bool {
	return strings.ContainsAny(p, "\x00\\")
}
