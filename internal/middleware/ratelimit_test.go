package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestLimiter(t *testing.T, limit rate.Limit, burst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     limit,
		GeneralBurst:    burst,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)
	return rl
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := newTestLimiter(t, 1, 3)
	handler := rl.Middleware()(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
		req.RemoteAddr = "203.0.113.10:12345"
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestRateLimiter_ExceedingBurst_Returns429WithRetryAfter(t *testing.T) {
	rl := newTestLimiter(t, 0.1, 1)
	handler := rl.Middleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
	req.RemoteAddr = "203.0.113.10:12345"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimiter_ClientsAreIsolatedByIP(t *testing.T) {
	rl := newTestLimiter(t, 0.1, 1)
	handler := rl.Middleware()(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "203.0.113.10:1111"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("first client should be limited, got %d", rec.Code)
	}

	// 別IPのクライアントは影響を受けない
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "203.0.113.20:2222"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Errorf("second client: status = %d, want 200", rec.Code)
	}
}

func TestRateLimiter_SamePortDifferentConnections_ShareLimit(t *testing.T) {
	// 制限キーはIPのみで、送信元ポートは無視される
	rl := newTestLimiter(t, 0.1, 1)
	handler := rl.Middleware()(okHandler())

	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	req1.RemoteAddr = "203.0.113.10:1111"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req1)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "203.0.113.10:9999"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req2)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("same IP with different port: status = %d, want 429", rec.Code)
	}
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		CleanupInterval: 10 * time.Millisecond,
	})
	defer rl.Stop()

	rl.getOrCreateLimiter("203.0.113.10")
	if rl.LimiterCount() != 1 {
		t.Fatalf("LimiterCount = %d, want 1", rl.LimiterCount())
	}

	// CleanupIntervalの2倍を超えるまで待つとエントリが回収される
	deadline := time.Now().Add(2 * time.Second)
	for rl.LimiterCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if rl.LimiterCount() != 0 {
		t.Errorf("LimiterCount = %d after cleanup window, want 0", rl.LimiterCount())
	}
}
