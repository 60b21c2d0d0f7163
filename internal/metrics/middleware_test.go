package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
)

func TestStatusWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec}

	sw.WriteHeader(http.StatusNotAcceptable)
	if sw.status != http.StatusNotAcceptable || rec.Code != http.StatusNotAcceptable {
		t.Fatalf("status = %d / %d", sw.status, rec.Code)
	}

	sw.Write([]byte("no acceptable"))
	sw.Write([]byte(" representation"))
	if sw.n != len("no acceptable representation") {
		t.Fatalf("bytes = %d", sw.n)
	}
}

func TestStatusWriter_ImplicitOK(t *testing.T) {
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder()}
	sw.Write([]byte("body"))
	if sw.status != http.StatusOK {
		t.Fatalf("status = %d, want implicit 200", sw.status)
	}
}

func TestMiddleware_CountsByRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<p>intro</p>"))
	})
	h := m.Middleware(r)

	for _, path := range []string{"/docs/intro", "/guides/setup"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	fam := gatherMetric(t, m.reg, "http_requests_total")
	if fam == nil {
		t.Fatal("http_requests_total not registered")
	}
	// both documents collapse into the wildcard route label
	found := false
	for _, metric := range fam.GetMetric() {
		labels := map[string]string{}
		for _, lp := range metric.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		if labels["route"] == "/*" && labels["method"] == "GET" && labels["status"] == "200" {
			found = true
			if got := metric.GetCounter().GetValue(); got != 2 {
				t.Fatalf("counter = %v, want 2", got)
			}
		}
		if labels["route"] == "/docs/intro" || labels["route"] == "/guides/setup" {
			t.Fatalf("raw path leaked into route label: %v", labels)
		}
	}
	if !found {
		t.Fatal("no series for GET /* 200")
	}
}

func TestMiddleware_ObservesResponseSize(t *testing.T) {
	m := New()
	body := "negotiated body"
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/docs", http.NoBody))

	fam := gatherMetric(t, m.reg, "http_response_size_bytes")
	if fam == nil {
		t.Fatal("http_response_size_bytes not registered")
	}
	hist := fam.GetMetric()[0].GetHistogram()
	if hist.GetSampleCount() != 1 {
		t.Fatalf("sample count = %d", hist.GetSampleCount())
	}
	if hist.GetSampleSum() != float64(len(body)) {
		t.Fatalf("sample sum = %v, want %d", hist.GetSampleSum(), len(body))
	}
}

func TestMiddleware_InflightGauge(t *testing.T) {
	m := New()

	var during float64
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fam := gatherMetric(t, m.reg, "http_inflight_requests")
		during = fam.GetMetric()[0].GetGauge().GetValue()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/docs", http.NoBody))

	if during != 1 {
		t.Fatalf("inflight during request = %v", during)
	}
	fam := gatherMetric(t, m.reg, "http_inflight_requests")
	if after := fam.GetMetric()[0].GetGauge().GetValue(); after != 0 {
		t.Fatalf("inflight after request = %v", after)
	}
}

func TestMiddleware_SampledTraceRecordsLatency(t *testing.T) {
	m := New()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	req := httptest.NewRequest(http.MethodGet, "/docs", http.NoBody).
		WithContext(trace.ContextWithSpanContext(context.Background(), sc))

	h.ServeHTTP(httptest.NewRecorder(), req)

	fam := gatherMetric(t, m.reg, "http_request_duration_seconds")
	if fam == nil {
		t.Fatal("http_request_duration_seconds not registered")
	}
	if got := fam.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
		t.Fatalf("duration samples = %d", got)
	}
}
