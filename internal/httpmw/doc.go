// Package httpmw holds the HTTP middleware the content server is assembled
// from. httpserver.NewHandler stacks them with Chain; nothing here is
// chi-specific except AnnotateHTTPRoute, which reads the matched route
// pattern after the router has run.
//
// The server is read-only (GET/HEAD against negotiated resources), so the
// middleware never logs query strings, user agents, or other
// request-supplied values beyond the path.
package httpmw
