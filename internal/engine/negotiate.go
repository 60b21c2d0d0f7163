package engine

import (
	"context"
	"fmt"

	"github.com/keithlinneman/contentd/internal/body"
	"github.com/keithlinneman/contentd/internal/media"
	"github.com/keithlinneman/contentd/internal/route"
)

// Negotiate picks and renders the best representation of r for the given
// acceptable ranges, most preferred first. Hidden routes are not found.
//
// Ranges are tried in order; within one range the iteration order over a
// route's representations is unspecified. The first successful render wins.
// A failed render is recorded and the search continues — fallback on
// failure, not fail-fast. With no match at all the result is
// *NotAcceptableError; with matches that all failed it is
// *RenderFailedError carrying the first failure.
func (e *Engine) Negotiate(ctx context.Context, r route.Route, ranges []media.Range, req Request) (body.Body, media.Type, error) {
	return e.negotiate(ctx, r, ranges, req, nil, false)
}

func (e *Engine) negotiate(ctx context.Context, r route.Route, ranges []media.Range, req Request, extra map[string]any, internal bool) (body.Body, media.Type, error) {
	if !internal && r.Hidden() {
		return nil, media.Type{}, &NotFoundError{Route: r}
	}
	reps, ok := e.registry[r]
	if !ok {
		return nil, media.Type{}, &NotFoundError{Route: r}
	}

	var firstErr error
	matched := false
	for _, rng := range ranges {
		for mt, rend := range reps {
			if !mt.Within(rng) {
				continue
			}
			matched = true
			gotMT, b, err := rend.render(ctx, e, req, extra)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				if e.onRenderFailure != nil {
					e.onRenderFailure(rend.kind())
				}
				e.logger.Warn(ctx, "render attempt failed, trying next representation",
					"route", r.String(),
					"media_type", mt.String(),
					"kind", rend.kind(),
					"error", err.Error(),
				)
				continue
			}
			if gotMT != mt {
				// registry key and rendered output disagreeing is a bug in
				// the engine, not a request failure
				panic(fmt.Sprintf("engine: renderer for %s produced %s, registered as %s", r, gotMT, mt))
			}
			return b, mt, nil
		}
	}

	if !matched {
		return nil, media.Type{}, &NotAcceptableError{Route: r}
	}
	return nil, media.Type{}, &RenderFailedError{Route: r, Err: firstErr}
}
