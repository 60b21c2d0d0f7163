// Package route defines the canonical absolute-path identifier used as the
// key for content registry and index lookups.
//
// A Route always starts with exactly one '/', contains no empty segments,
// and compares structurally on its canonical string: "/foo/bar/" and
// "/foo//bar" parse to the same Route.
package route

import (
	"fmt"
	"strings"
)

// Route is a canonicalized absolute path. The zero value is not a valid
// route; construct via Parse or FromSegments.
type Route struct {
	canonical string
}

// InvalidError reports an input that cannot be canonicalized.
type InvalidError struct {
	Input string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid route %q: must be an absolute /-separated path", e.Input)
}

// Parse canonicalizes input into a Route. Input must begin with '/';
// repeated and trailing separators collapse, so "////foo///" == "/foo".
// The bare separator parses to the root route "/".
func Parse(input string) (Route, error) {
	if !strings.HasPrefix(input, "/") {
		return Route{}, &InvalidError{Input: input}
	}
	segs := make([]string, 0, 8)
	for _, s := range strings.Split(input, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return FromSegments(segs), nil
}

// FromSegments builds a Route from already-split, non-empty segments.
func FromSegments(segs []string) Route {
	if len(segs) == 0 {
		return Route{canonical: "/"}
	}
	return Route{canonical: "/" + strings.Join(segs, "/")}
}

// Root is the route "/".
func Root() Route { return Route{canonical: "/"} }

func (r Route) String() string { return r.canonical }

// IsRoot reports whether r is the root route.
func (r Route) IsRoot() bool { return r.canonical == "/" }

// Segments returns the path segments in order. Root has none.
func (r Route) Segments() []string {
	if r.canonical == "/" || r.canonical == "" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(r.canonical, "/"), "/")
}

// Hidden reports whether any segment starts with '_'. Hidden routes are
// reachable only from internal lookups (nested renders), never from
// external negotiation.
func (r Route) Hidden() bool {
	for _, seg := range r.Segments() {
		if strings.HasPrefix(seg, "_") {
			return true
		}
	}
	return false
}
