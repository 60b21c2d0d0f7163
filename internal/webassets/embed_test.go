package webassets

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestErrorPage_Known(t *testing.T) {
	for _, status := range []int{404, 406, 500} {
		page, ok := ErrorPage(status)
		if !ok {
			t.Errorf("ErrorPage(%d): no page embedded", status)
			continue
		}
		if !strings.Contains(string(page), "<!doctype html>") {
			t.Errorf("ErrorPage(%d): not an HTML document", status)
		}
	}
}

func TestErrorPage_Unknown(t *testing.T) {
	if _, ok := ErrorPage(418); ok {
		t.Fatal("no page should exist for 418")
	}
}

func TestServeError(t *testing.T) {
	rec := httptest.NewRecorder()
	ServeError(rec, http.StatusNotFound)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Not Found") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestServeError_FallsBackToStatusText(t *testing.T) {
	rec := httptest.NewRecorder()
	ServeError(rec, http.StatusTeapot)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), http.StatusText(http.StatusTeapot)) {
		t.Fatalf("body = %q", rec.Body.String())
	}
}
