package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apotekpos/backend-pos/internal/common"
)

func TestMiddlewareLimitsAndSetsHeaders(t *testing.T) {
	l, _ := newLimiter(t)
	handler := Handler{
		Limiter: l,
		Config: Config{
			Key:    ByOperator("search"),
			Window: time.Minute,
			Max:    2,
		},
	}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/products?q=a", nil)
		req = req.WithContext(common.WithAuth(req.Context(), common.AuthContext{OperatorID: "op-1", Role: "cashier"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do(); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, rec.Code)
		}
	}
	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Limit") != "2" {
		t.Fatalf("unexpected limit header %q", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestMiddlewareFailsOpenOnLimiterError(t *testing.T) {
	l, mr := newLimiter(t)
	mr.Close()

	var sawErr bool
	handler := Handler{
		Limiter: l,
		Config:  Config{Key: ByOperator("search"), Window: time.Minute, Max: 1},
		OnError: func(error) { sawErr = true },
	}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("limiter failure must not block traffic, got %d", rec.Code)
	}
	if !sawErr {
		t.Fatal("expected OnError callback")
	}
}
