// Package engine is the content engine: it builds the representation
// registry from a scanned content tree, negotiates which representation to
// render for a set of acceptable media ranges, and exposes the recursive
// fetch helper that lets one piece of content embed another's rendered
// output.
//
// Templates receive a data map with a stable key contract:
//
//	MediaType  string             target media type (always set)
//	Route      string             originating request route (may be absent)
//	Query      map[string]string  request query parameters
//	Headers    map[string]string  request headers
//	Index      *content.Snapshot  content index for listings
//
// plus any extra key/value pairs supplied at a get call site, which win
// on collision. The same contract reaches executables as CONTENT_*
// environment variables.
package engine
