package httpmw

import "net/http"

// MaxBody caps how much of a request body a handler can read. The content
// server never reads bodies, so the limit is set very low; anything a
// handler does read past n bytes fails with 413.
func MaxBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
