package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveWithSecurityHeaders(t *testing.T, mutate func(*http.Request)) http.Header {
	t.Helper()
	handler := WithSecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Header()
}

func TestSecurityHeadersAlwaysSet(t *testing.T) {
	headers := serveWithSecurityHeaders(t, nil)

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	}
	for name, value := range want {
		if got := headers.Get(name); got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
	if csp := headers.Get("Content-Security-Policy"); csp == "" {
		t.Error("Content-Security-Policy not set")
	}
}

func TestNoHSTSOnPlainHTTP(t *testing.T) {
	headers := serveWithSecurityHeaders(t, nil)
	if got := headers.Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("unexpected HSTS header on plain http: %q", got)
	}
}

func TestHSTSWhenForwardedHTTPS(t *testing.T) {
	headers := serveWithSecurityHeaders(t, func(r *http.Request) {
		r.Header.Set("X-Forwarded-Proto", "HTTPS")
	})
	if got := headers.Get("Strict-Transport-Security"); got == "" {
		t.Fatal("expected HSTS header behind a TLS-terminating proxy")
	}
}
