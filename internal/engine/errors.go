package engine

import (
	"fmt"
	"strings"

	"github.com/keithlinneman/contentd/internal/route"
)

// NotFoundError: no content registered at the route (or the route is
// hidden and the lookup came from outside the engine).
type NotFoundError struct {
	Route route.Route
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no content registered at %q", e.Route)
}

// NotAcceptableError: content exists but no acceptable range matched any
// of its representations. An empty range list always produces this.
type NotAcceptableError struct {
	Route route.Route
}

func (e *NotAcceptableError) Error() string {
	return fmt.Sprintf("no acceptable media type for %q", e.Route)
}

// RenderFailedError: at least one representation matched an acceptable
// range but every attempt failed. Carries the first recorded failure.
type RenderFailedError struct {
	Route route.Route
	Err   error
}

func (e *RenderFailedError) Error() string {
	return fmt.Sprintf("rendering %q failed: %v", e.Route, e.Err)
}
func (e *RenderFailedError) Unwrap() error { return e.Err }

// FileNameError: a scanned file whose extension chain fits no registration
// shape. Load-time, fatal.
type FileNameError struct {
	Path       string
	Extensions []string
}

func (e *FileNameError) Error() string {
	if len(e.Extensions) == 0 {
		return fmt.Sprintf("content file %q has no extension", e.Path)
	}
	return fmt.Sprintf("content file %q has unsupported extensions .%s", e.Path, strings.Join(e.Extensions, "."))
}
