package httpserver

import (
	"net/http"

	"github.com/keithlinneman/contentd/internal/engine"
	"github.com/keithlinneman/contentd/internal/httpmw"
	"github.com/keithlinneman/contentd/internal/log"
	"github.com/keithlinneman/contentd/internal/metrics"
)

type Options struct {
	Logger log.Logger
	Port   int

	// Engine serves every GET/HEAD through negotiation.
	Engine *engine.Engine

	// Metrics records negotiation outcomes and render failures; nil is fine.
	Metrics *metrics.ServerMetrics

	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	RateLimitMW  func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions
	ContentInfo  httpmw.ContentInfo // For X-Content-Bundle-Version and X-Content-Hash headers
}
