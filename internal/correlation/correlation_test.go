package correlation_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"logtap/internal/correlation"
)

func TestMiddlewarePropagatesInboundIdentifier(t *testing.T) {
	var seen string
	handler := correlation.Middleware("", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = correlation.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(correlation.DefaultHeader, "req-42")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if seen != "req-42" {
		t.Fatalf("handler saw %q, want req-42", seen)
	}
	if got := rr.Header().Get(correlation.DefaultHeader); got != "req-42" {
		t.Fatalf("response header %q, want req-42", got)
	}
}

func TestMiddlewareGeneratesWhenAbsent(t *testing.T) {
	var seen string
	handler := correlation.Middleware("X-Trace", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = correlation.FromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("no identifier generated")
	}
	if got := rr.Header().Get("X-Trace"); got != seen {
		t.Fatalf("response header %q does not match context value %q", got, seen)
	}
}

func TestMiddlewareIgnoresBlankInbound(t *testing.T) {
	var seen string
	handler := correlation.Middleware("", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = correlation.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(correlation.DefaultHeader, "   ")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if seen == "" || seen == "   " {
		t.Fatalf("blank inbound identifier should be replaced, got %q", seen)
	}
}

func TestDistinctRequestsGetDistinctIdentifiers(t *testing.T) {
	ids := make(map[string]struct{})
	handler := correlation.Middleware("", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := correlation.FromContext(r.Context())
		ids[id] = struct{}{}
	}))

	for i := 0; i < 10; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	if len(ids) != 10 {
		t.Fatalf("expected 10 distinct identifiers, got %d", len(ids))
	}
}
