package httpmw

import "net/http"

// Chain wraps h with mws, first entry outermost. Nil entries are skipped,
// which lets callers build the list with conditional slots (rate limiting
// when enabled, for example) without branching at every wrap site.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mw := mws[i]; mw != nil {
			h = mw(h)
		}
	}
	return h
}
