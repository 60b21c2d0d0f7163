// Package media implements RFC 2046 media type values and the media-range
// matching predicate used by content negotiation.
package media

import (
	"fmt"
	"strings"
)

// Type is a fully specific type/subtype pair. Neither part may be "*".
type Type struct {
	Type    string
	Subtype string
}

// Range is a type/subtype pattern where either part may be "*".
type Range struct {
	Type    string
	Subtype string
}

// Any is the */* range.
var Any = Range{Type: "*", Subtype: "*"}

func (t Type) String() string  { return t.Type + "/" + t.Subtype }
func (r Range) String() string { return r.Type + "/" + r.Subtype }

// Within reports whether t matches r: */* matches anything, type/* matches
// the same top-level type, otherwise exact equality is required.
func (t Type) Within(r Range) bool {
	if r.Type == "*" {
		return true
	}
	if r.Type != t.Type {
		return false
	}
	return r.Subtype == "*" || r.Subtype == t.Subtype
}

// Exact returns t as a range matching only t.
func (t Type) Exact() Range { return Range{Type: t.Type, Subtype: t.Subtype} }

func splitPair(s string) (string, string, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed media type %q", s)
	}
	return strings.ToLower(strings.TrimSpace(parts[0])), strings.ToLower(strings.TrimSpace(parts[1])), nil
}

// ParseType parses a concrete type/subtype pair, rejecting wildcards.
func ParseType(s string) (Type, error) {
	top, sub, err := splitPair(s)
	if err != nil {
		return Type{}, err
	}
	if top == "*" || sub == "*" {
		return Type{}, fmt.Errorf("media type %q may not contain wildcards", s)
	}
	return Type{Type: top, Subtype: sub}, nil
}

// ParseRange parses a possibly wildcarded type/subtype pair. A bare
// wildcard top-level type requires a wildcard subtype (*/html is invalid).
func ParseRange(s string) (Range, error) {
	top, sub, err := splitPair(s)
	if err != nil {
		return Range{}, err
	}
	if top == "*" && sub != "*" {
		return Range{}, fmt.Errorf("malformed media range %q", s)
	}
	return Range{Type: top, Subtype: sub}, nil
}

// typeByExtension maps recognized filename extensions to output media
// types. Unrecognized extensions are a load-time error for content files,
// so this table is deliberately explicit rather than deferring to the
// platform mime database.
var typeByExtension = map[string]Type{
	"html":  {Type: "text", Subtype: "html"},
	"htm":   {Type: "text", Subtype: "html"},
	"txt":   {Type: "text", Subtype: "plain"},
	"css":   {Type: "text", Subtype: "css"},
	"csv":   {Type: "text", Subtype: "csv"},
	"md":    {Type: "text", Subtype: "markdown"},
	"js":    {Type: "text", Subtype: "javascript"},
	"json":  {Type: "application", Subtype: "json"},
	"xml":   {Type: "application", Subtype: "xml"},
	"pdf":   {Type: "application", Subtype: "pdf"},
	"wasm":  {Type: "application", Subtype: "wasm"},
	"svg":   {Type: "image", Subtype: "svg+xml"},
	"png":   {Type: "image", Subtype: "png"},
	"gif":   {Type: "image", Subtype: "gif"},
	"jpg":   {Type: "image", Subtype: "jpeg"},
	"jpeg":  {Type: "image", Subtype: "jpeg"},
	"webp":  {Type: "image", Subtype: "webp"},
	"ico":   {Type: "image", Subtype: "x-icon"},
	"woff":  {Type: "font", Subtype: "woff"},
	"woff2": {Type: "font", Subtype: "woff2"},
}

// TypeForExtension resolves a filename extension (without the dot) to its
// media type. ok is false for unrecognized extensions.
func TypeForExtension(ext string) (Type, bool) {
	t, ok := typeByExtension[strings.ToLower(ext)]
	return t, ok
}
