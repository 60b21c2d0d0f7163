package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keithlinneman/contentd/internal/httpmw"
)

func newTestLimiter(t *testing.T, opts ...Option) *IPLimiter {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	defaults := []Option{
		WithRate(1, 5), // slow refill, small burst keeps tests fast
		WithTTL(100 * time.Millisecond),
	}
	return New(ctx, append(defaults, opts...)...)
}

func TestAllow_BurstThenDeny(t *testing.T) {
	l := newTestLimiter(t)

	for i := 0; i < 5; i++ {
		if !l.allow("192.0.2.10") {
			t.Fatalf("request %d denied inside burst", i+1)
		}
	}
	if l.allow("192.0.2.10") {
		t.Fatal("request allowed past exhausted burst")
	}
}

func TestAllow_PerIPBuckets(t *testing.T) {
	l := newTestLimiter(t, WithRate(1, 2))

	l.allow("192.0.2.10")
	l.allow("192.0.2.10")
	if l.allow("192.0.2.10") {
		t.Fatal("first ip not exhausted")
	}

	// a different client still has its full burst
	if !l.allow("192.0.2.11") {
		t.Fatal("second ip penalized for first ip's traffic")
	}
}

func TestAllow_DenialHooks(t *testing.T) {
	var firstDenied []string
	var denied int32
	l := newTestLimiter(t,
		WithRate(1, 1),
		WithOnFirstDenied(func(ip string) { firstDenied = append(firstDenied, ip) }),
		WithOnDenied(func(string) { atomic.AddInt32(&denied, 1) }),
	)

	l.allow("192.0.2.10")
	for i := 0; i < 3; i++ {
		if l.allow("192.0.2.10") {
			t.Fatal("allowed past burst")
		}
	}

	if len(firstDenied) != 1 || firstDenied[0] != "192.0.2.10" {
		t.Fatalf("first-denied hook calls = %v, want one", firstDenied)
	}
	if got := atomic.LoadInt32(&denied); got != 3 {
		t.Fatalf("denied hook calls = %d, want 3", got)
	}
}

func TestAllow_VisitorCap(t *testing.T) {
	var capacity int32
	l := newTestLimiter(t,
		WithMaxVisitors(3),
		WithOnCapacity(func() { atomic.AddInt32(&capacity, 1) }),
	)

	for i := 0; i < 3; i++ {
		if !l.allow(fmt.Sprintf("192.0.2.%d", i)) {
			t.Fatalf("visitor %d rejected under cap", i)
		}
	}

	// map full: new addresses are refused, existing ones keep working
	if l.allow("198.51.100.99") {
		t.Fatal("new visitor admitted past cap")
	}
	if l.allow("198.51.100.100") {
		t.Fatal("another new visitor admitted past cap")
	}
	if !l.allow("192.0.2.0") {
		t.Fatal("tracked visitor rejected while map full")
	}

	if got := atomic.LoadInt32(&capacity); got != 1 {
		t.Fatalf("capacity hook fired %d times, want once per episode", got)
	}
}

func TestCleanup_EvictsIdleAndRearmsCapacity(t *testing.T) {
	var capacity int32
	l := newTestLimiter(t,
		WithTTL(40*time.Millisecond),
		WithMaxVisitors(1),
		WithOnCapacity(func() { atomic.AddInt32(&capacity, 1) }),
	)

	l.allow("192.0.2.10")
	if l.allow("192.0.2.11") {
		t.Fatal("second visitor admitted past cap of 1")
	}

	// wait for the cleanup tick to evict the idle entry
	deadline := time.Now().Add(2 * time.Second)
	for {
		l.mu.Lock()
		n := len(l.visitors)
		l.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("idle visitor never evicted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !l.allow("192.0.2.11") {
		t.Fatal("slot not freed after eviction")
	}
	if l.allow("192.0.2.12") {
		t.Fatal("cap not enforced after eviction")
	}
	if got := atomic.LoadInt32(&capacity); got != 2 {
		t.Fatalf("capacity hook fired %d times, want re-arm after eviction", got)
	}
}

func TestMiddleware_DeniesWith429(t *testing.T) {
	l := newTestLimiter(t, WithRate(1, 1))

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/docs/intro", http.NoBody)
		req = req.WithContext(httpmw.WithClientIP(req.Context(), "192.0.2.10"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("Retry-After = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Fatalf("Content-Type = %q", got)
	}
	if body := rec.Body.String(); body != `{"error":"too many requests"}` {
		t.Fatalf("body = %q", body)
	}
}

func TestMiddleware_KeysOnResolvedIP(t *testing.T) {
	l := newTestLimiter(t, WithRate(1, 1))
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/docs", http.NoBody)
		req = req.WithContext(httpmw.WithClientIP(req.Context(), ip))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	send("192.0.2.10")
	if code := send("192.0.2.10"); code != http.StatusTooManyRequests {
		t.Fatalf("same ip second request = %d", code)
	}
	if code := send("192.0.2.20"); code != http.StatusOK {
		t.Fatalf("fresh ip = %d, want 200", code)
	}
}
