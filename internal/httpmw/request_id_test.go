package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	var ctxID string
	h := RequestID("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/intro", http.NoBody))

	echoed := rec.Header().Get("X-Request-Id")
	if echoed == "" {
		t.Fatal("no X-Request-Id on response")
	}
	if len(echoed) != 32 {
		t.Fatalf("generated id %q, want 32 hex chars", echoed)
	}
	if ctxID != echoed {
		t.Fatalf("context id %q != response id %q", ctxID, echoed)
	}
}

func TestRequestID_ReusesInboundHeader(t *testing.T) {
	var ctxID string
	h := RequestID("X-Request-Id")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/docs", http.NoBody)
	req.Header.Set("X-Request-Id", "lb-assigned-7f3a")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if ctxID != "lb-assigned-7f3a" {
		t.Fatalf("context id = %q, want the inbound value", ctxID)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "lb-assigned-7f3a" {
		t.Fatalf("echoed id = %q", got)
	}
}

func TestRequestID_CustomHeaderName(t *testing.T) {
	h := RequestID("X-Correlation-Id")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Header().Get("X-Correlation-Id") == "" {
		t.Fatal("custom header not set")
	}
	if rec.Header().Get("X-Request-Id") != "" {
		t.Fatal("default header set alongside custom name")
	}
}

func TestRequestIDContext_EmptyIsNoop(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("got %q from empty-id context", got)
	}
}

func TestRequestIDContext_RoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc123")
	if got := RequestIDFromContext(ctx); got != "abc123" {
		t.Fatalf("got %q", got)
	}
}
