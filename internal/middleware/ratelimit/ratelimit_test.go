package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, rpm int) (*Limiter, *time.Time) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RequestsPerMinute = rpm
	rl := NewLimiter(cfg)
	t.Cleanup(rl.Stop)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestLimiter_Allow(t *testing.T) {
	rl, now := newTestLimiter(t, 2)

	if !rl.Allow("1.1.1.1") || !rl.Allow("1.1.1.1") {
		t.Fatal("first two requests must pass")
	}
	if rl.Allow("1.1.1.1") {
		t.Fatal("third request in the window must be rejected")
	}
	if !rl.Allow("2.2.2.2") {
		t.Fatal("other clients are not affected")
	}

	*now = now.Add(time.Minute)
	if !rl.Allow("1.1.1.1") {
		t.Fatal("a new window starts after a minute")
	}

	if m := rl.GetMetrics(); m.TotalHits != 1 || m.ClientCount != 2 {
		t.Fatalf("unexpected metrics %+v", m)
	}

	*now = now.Add(11 * time.Minute)
	if n := rl.cleanupStaleEntries(); n != 2 {
		t.Fatalf("expected 2 stale clients removed, got %d", n)
	}
}

func TestLimiter_MiddlewareOnlyCountsMutatingRequests(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	serve := func(method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/api/recurring", nil))
		return rec
	}

	for i := 0; i < 3; i++ {
		if rec := serve(http.MethodGet); rec.Code != http.StatusNoContent {
			t.Fatalf("GET %d: expected 204, got %d", i, rec.Code)
		}
	}
	if rec := serve(http.MethodPost); rec.Code != http.StatusNoContent {
		t.Fatalf("first POST: expected 204, got %d", rec.Code)
	}
	rec := serve(http.MethodPost)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After header")
	}
}
