package engine

import (
	"context"
	"errors"

	"github.com/keithlinneman/contentd/internal/body"
	"github.com/keithlinneman/contentd/internal/media"
	"github.com/keithlinneman/contentd/internal/route"
	"github.com/keithlinneman/contentd/internal/xerrors"
)

// getHelper binds the recursive-fetch helper to one render: the closure
// carries the render's context, target media type, and originating
// request, so a template can write {{get "/nav"}} or
// {{get "/card" "Title" "Home"}} and receive the referenced content
// rendered for the same target type.
//
// The template engine needs a plain string back, so the nested body is
// drained synchronously in full. There is no cycle detection: content
// that gets itself recurses without bound (documented engine baseline).
func (e *Engine) getHelper(ctx context.Context, target media.Type, req Request) func(args ...any) (string, error) {
	return func(args ...any) (string, error) {
		if len(args) == 0 {
			return "", xerrors.New("get: a route argument is required")
		}
		raw, ok := args[0].(string)
		if !ok {
			return "", xerrors.Newf("get: route must be a string, got %T", args[0])
		}
		r, err := route.Parse(raw)
		if err != nil {
			return "", xerrors.Wrapf(err, "get %q", raw)
		}

		extra, err := pairsToMap(args[1:])
		if err != nil {
			return "", xerrors.Wrapf(err, "get %q", raw)
		}

		// Nested lookups may reach hidden routes; that is what the '_'
		// convention reserves them for.
		b, _, err := e.negotiate(ctx, r, []media.Range{target.Exact()}, req, extra, true)
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				return "", xerrors.Newf("get %q: no content registered", raw)
			}
			return "", xerrors.Wrapf(err, "get %q", raw)
		}

		out, err := body.Collect(ctx, b)
		if err != nil {
			return "", xerrors.Wrapf(err, "get %q: draining nested body", raw)
		}
		return string(out), nil
	}
}

// pairsToMap turns trailing key/value arguments into the extra-context map.
func pairsToMap(args []any) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if len(args)%2 != 0 {
		return nil, xerrors.Newf("extra context needs key/value pairs, got %d trailing arguments", len(args))
	}
	out := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		k, ok := args[i].(string)
		if !ok {
			return nil, xerrors.Newf("extra context key %v is not a string", args[i])
		}
		out[k] = args[i+1]
	}
	return out, nil
}
