// Package content turns a directory tree into routable content metadata.
//
// The core pieces are:
//   - [ScanDir]: recursive walker producing pre-opened [File] descriptors
//     with derived route and extension metadata
//   - [Index]: the hierarchical route tree used for listing/introspection
//
// Files are opened eagerly at scan time and held open until registry
// teardown, trading descriptor pressure for serve-time latency.
package content
