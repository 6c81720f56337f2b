package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenBucketBurstThenThrottle(t *testing.T) {
	tb := NewTokenBucket(3, 1)

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("request %d within burst denied", i+1)
		}
	}
	if tb.Allow() {
		t.Fatal("request over capacity allowed")
	}
}

func TestUploadLimiterIsolatesClients(t *testing.T) {
	limiter := NewUploadLimiter(1, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/companies/x/images", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("10.0.0.1:1000"); code != http.StatusNoContent {
		t.Errorf("first request = %d, want 204", code)
	}
	if code := do("10.0.0.1:1000"); code != http.StatusTooManyRequests {
		t.Errorf("second request = %d, want 429", code)
	}
	if code := do("10.0.0.2:1000"); code != http.StatusNoContent {
		t.Errorf("other client = %d, want 204", code)
	}
}
