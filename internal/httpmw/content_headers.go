package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ContentInfo reports which content tree a response was served from.
// The engine's loaded tree implements it; both values may be empty when
// serving from a plain local directory.
type ContentInfo interface {
	ContentVersion() string
	ContentHash() string
}

// hashHeaderLen truncates X-Content-Hash. Twelve hex chars of a sha256 is
// plenty to tell two bundles apart and keeps the header small.
const hashHeaderLen = 12

// ContentHeaders stamps responses with the bundle version and (truncated)
// hash of the tree they were served from, and mirrors both onto the active
// span. With a nil info it is a pass-through.
func ContentHeaders(info ContentInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if info == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			version := info.ContentVersion()
			hash := info.ContentHash()

			if version != "" {
				w.Header().Set("X-Content-Bundle-Version", version)
			}
			if hash != "" {
				short := hash
				if len(short) > hashHeaderLen {
					short = short[:hashHeaderLen]
				}
				w.Header().Set("X-Content-Hash", short)
			}

			if span := trace.SpanFromContext(r.Context()); span != nil && span.IsRecording() {
				if version != "" {
					span.SetAttributes(attribute.String("content.version", version))
				}
				if hash != "" {
					span.SetAttributes(attribute.String("content.hash", hash))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
