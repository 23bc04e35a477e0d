package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector(nil)

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		realIP     string
		want       string
	}{
		{"direct", "203.0.113.9:5555", "", "", "203.0.113.9"},
		{"untrusted proxy ignored", "203.0.113.9:5555", "198.51.100.1", "", "203.0.113.9"},
		{"trusted proxy xff", "10.0.0.2:80", "198.51.100.1, 10.0.0.2", "", "198.51.100.1"},
		{"trusted proxy real ip", "127.0.0.1:80", "", "198.51.100.7", "198.51.100.7"},
		{"trusted proxy bad header", "127.0.0.1:80", "garbage", "", "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetector_Handler(t *testing.T) {
	d := NewDetector(nil)
	h := d.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	serve := func(method, target, ua string) int {
		r := httptest.NewRequest(method, target, nil)
		if ua != "" {
			r.Header.Set("User-Agent", ua)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		return rr.Code
	}

	if code := serve(http.MethodGet, "/expenses", "Mozilla/5.0"); code != http.StatusOK {
		t.Errorf("normal request status = %d", code)
	}
	if code := serve(http.MethodGet, "/.env", ""); code != http.StatusOK {
		t.Errorf("suspicious paths are logged, not blocked: status = %d", code)
	}
	serve(http.MethodGet, "/", "sqlmap/1.7")
	if code := serve(http.MethodTrace, "/", ""); code != http.StatusMethodNotAllowed {
		t.Errorf("TRACE status = %d, want 405", code)
	}

	if got := d.GetMetrics().SuspiciousRequests; got != 3 {
		t.Errorf("SuspiciousRequests = %d, want 3", got)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig("https://api.example.com")).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	csp := rr.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "connect-src 'self' https://api.example.com;") {
		t.Errorf("CSP = %q", csp)
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	api := NewHeadersMiddleware(APIHeadersConfig()).Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "https://example.com/api", nil)
	api.ServeHTTP(rr, req)
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS expected over TLS")
	}
	if rr.Header().Get("Cross-Origin-Resource-Policy") != "cross-origin" {
		t.Error("API responses must be readable cross-origin")
	}
}
