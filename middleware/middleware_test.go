package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

func TestLoggingMiddleware(t *testing.T) {
	var requestID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = GetRequestID(r.Context())
		if GetLogger(r.Context()) == nil {
			t.Error("expected logger in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	loggedHandler := LoggingMiddleware(handler)

	req, err := http.NewRequest("GET", "/test", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	loggedHandler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	if requestID == "" || rr.Header().Get("X-Request-ID") != requestID {
		t.Errorf("expected request id header %q, got %q", requestID, rr.Header().Get("X-Request-ID"))
	}
}

func TestLoggingMiddlewareKeepsIncomingRequestID(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected abc-123, got %s", got)
	}
}

func TestLoggingMiddlewareRecoversPanic(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(0), 1)
	handler := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RateLimit(limiter))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest("GET", "/", nil))
	if first.Code != http.StatusOK {
		t.Errorf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest("GET", "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", second.Code)
	}
}
