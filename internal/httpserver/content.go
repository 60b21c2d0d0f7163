package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/keithlinneman/contentd/internal/body"
	"github.com/keithlinneman/contentd/internal/engine"
	"github.com/keithlinneman/contentd/internal/log"
	"github.com/keithlinneman/contentd/internal/media"
	"github.com/keithlinneman/contentd/internal/metrics"
	"github.com/keithlinneman/contentd/internal/pathutil"
	"github.com/keithlinneman/contentd/internal/route"
	"github.com/keithlinneman/contentd/internal/webassets"
)

// ContentHandler negotiates and streams content for every GET/HEAD path.
type ContentHandler struct {
	engine  *engine.Engine
	logger  log.Logger
	metrics *metrics.ServerMetrics
}

func NewContentHandler(e *engine.Engine, logger log.Logger, m *metrics.ServerMetrics) *ContentHandler {
	if logger == nil {
		logger = log.Nop()
	}
	return &ContentHandler{engine: e, logger: logger, metrics: m}
}

func (h *ContentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	raw := r.URL.Path
	if pathutil.Unprintable(raw) || pathutil.HasDotSegments(raw) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rt, err := route.Parse(raw)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	// An absent Accept header means anything is acceptable. A present but
	// unparseable one yields no ranges, which negotiation reports as 406.
	var ranges []media.Range
	if accept := r.Header.Get("Accept"); accept == "" {
		ranges = []media.Range{media.Any}
	} else {
		ranges = media.ParseAccept(accept)
	}

	req := engine.Request{
		Route:   rt.String(),
		Query:   flattenValues(r.URL.Query()),
		Headers: flattenValues(r.Header),
	}

	b, mt, err := h.engine.Negotiate(ctx, rt, ranges, req)
	if err != nil {
		h.serveNegotiateError(w, r, rt, err)
		return
	}
	defer b.Close()

	h.countOutcome(metrics.OutcomeOK)
	w.Header().Set("Content-Type", mt.String())

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	h.stream(w, r, rt, b)
}

// stream drains the body into the response, flushing chunks as they
// arrive so process output reaches slow readers incrementally. A failure
// after the first byte cannot change the status line; the connection is
// aborted so the client sees truncation instead of a silently short body.
func (h *ContentHandler) stream(w http.ResponseWriter, r *http.Request, rt route.Route, b body.Body) {
	ctx := r.Context()
	flusher, _ := w.(http.Flusher)

	var written int64
	for {
		chunk, err := b.Next(ctx)
		if err == io.EOF {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				// client went away; nothing to salvage
				h.logger.Debug(ctx, "client disconnected mid-stream", "route", rt.String())
				return
			}
			h.logger.Error(ctx, err, "content stream failed", "route", rt.String(), "bytes_written", written)
			if written == 0 {
				h.countOutcome(metrics.OutcomeRenderFailed)
				webassets.ServeError(w, http.StatusInternalServerError)
				return
			}
			panic(http.ErrAbortHandler)
		}
		if len(chunk) == 0 {
			continue
		}

		n, werr := w.Write(chunk)
		written += int64(n)
		if werr != nil {
			h.logger.Debug(ctx, "response write failed", "route", rt.String(), "error", werr.Error())
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (h *ContentHandler) serveNegotiateError(w http.ResponseWriter, r *http.Request, rt route.Route, err error) {
	ctx := r.Context()

	var nf *engine.NotFoundError
	var na *engine.NotAcceptableError
	var rf *engine.RenderFailedError
	switch {
	case errors.As(err, &nf):
		h.countOutcome(metrics.OutcomeNotFound)
		webassets.ServeError(w, http.StatusNotFound)

	case errors.As(err, &na):
		h.countOutcome(metrics.OutcomeNotAcceptable)
		webassets.ServeError(w, http.StatusNotAcceptable)

	case errors.As(err, &rf):
		h.countOutcome(metrics.OutcomeRenderFailed)
		h.logger.Error(ctx, err, "negotiation render failed", "route", rt.String())
		if h.metrics != nil {
			h.metrics.IncError(r.Method, "/*")
		}
		webassets.ServeError(w, http.StatusInternalServerError)

	default:
		h.countOutcome(metrics.OutcomeRenderFailed)
		h.logger.Error(ctx, err, "negotiation failed", "route", rt.String())
		if h.metrics != nil {
			h.metrics.IncError(r.Method, "/*")
		}
		webassets.ServeError(w, http.StatusInternalServerError)
	}
}

func (h *ContentHandler) countOutcome(outcome string) {
	if h.metrics != nil {
		h.metrics.IncNegotiation(outcome)
	}
}

// flattenValues keeps the first value per key, which is what templates
// and executables receive.
func flattenValues(in map[string][]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, vs := range in {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
