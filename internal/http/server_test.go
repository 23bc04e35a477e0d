package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/trace"
)

var bundle = fstest.MapFS{
	"index.html":     {Data: []byte("<!doctype html><title>ExpenseTracker</title>"), ModTime: time.Unix(1700000000, 0)},
	"assets/app.js":  {Data: []byte("console.log('app')"), ModTime: time.Unix(1700000000, 0)},
	"favicon.svg":    {Data: []byte("<svg/>"), ModTime: time.Unix(1700000000, 0)},
	"docs/guide.txt": {Data: []byte("guide")},
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Files == nil {
		cfg.Files = bundle
	}
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { srv.janitor.Stop() })
	return srv
}

func get(srv *Server, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestSPAFallback(t *testing.T) {
	srv := newTestServer(t, Config{})

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
	}{
		{"root", "/", 200, "ExpenseTracker"},
		{"client route", "/dashboard", 200, "ExpenseTracker"},
		{"nested client route", "/expenses/42/edit", 200, "ExpenseTracker"},
		{"directory without index", "/docs", 200, "ExpenseTracker"},
		{"existing asset", "/assets/app.js", 200, "console.log"},
		{"existing file", "/favicon.svg", 200, "<svg/>"},
		{"missing asset", "/assets/missing.js", 404, ""},
		{"missing file with extension", "/robots.txt", 404, ""},
		{"api path", "/api/expenses", 404, `"message":"not found"`},
		{"api prefix", "/apiary", 404, `"success":false`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(srv, http.MethodGet, tt.path)
			if rr.Code != tt.wantCode {
				t.Fatalf("GET %s status = %d, want %d", tt.path, rr.Code, tt.wantCode)
			}
			if tt.wantBody != "" && !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("GET %s body = %q, want %q", tt.path, rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestCacheHeaders(t *testing.T) {
	srv := newTestServer(t, Config{})

	for path, want := range map[string]string{
		"/":              cacheNoCache,
		"/some/route":    cacheNoCache,
		"/assets/app.js": cacheImmutable,
		"/favicon.svg":   cacheDefault,
		"/healthz":       "no-store",
	} {
		rr := get(srv, http.MethodGet, path)
		if got := rr.Header().Get("Cache-Control"); got != want {
			t.Errorf("GET %s Cache-Control = %q, want %q", path, got, want)
		}
	}
}

func TestETagRevalidation(t *testing.T) {
	srv := newTestServer(t, Config{})

	first := get(srv, http.MethodGet, "/assets/app.js")
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/assets/app.js", nil)
	req.Header.Set("If-None-Match", etag)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotModified {
		t.Errorf("conditional GET status = %d, want 304", rr.Code)
	}

	if hits, _ := srv.assets.Stats(); hits == 0 {
		t.Error("second request should be served from the asset cache")
	}
}

func TestNonGetMethods(t *testing.T) {
	srv := newTestServer(t, Config{})

	tests := []struct {
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{http.MethodPost, "/", 200, "ExpenseTracker"},
		{http.MethodPost, "/login", 200, "ExpenseTracker"},
		{http.MethodDelete, "/expenses/42", 200, "ExpenseTracker"},
		{http.MethodPost, "/favicon.svg", 404, ""},
		{http.MethodPut, "/assets/app.js", 404, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := get(srv, tt.method, tt.path)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if tt.wantBody != "" && !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want %q", rr.Body.String(), tt.wantBody)
			}
			if tt.wantCode == 200 && rr.Header().Get("Cache-Control") != cacheNoCache {
				t.Errorf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestSecurityAndTracing(t *testing.T) {
	srv := newTestServer(t, Config{})

	rr := get(srv, http.MethodGet, "/")
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
	if !strings.Contains(rr.Header().Get("Content-Security-Policy"), "default-src 'self'") {
		t.Errorf("CSP = %q", rr.Header().Get("Content-Security-Policy"))
	}
	if rr.Header().Get(trace.HeaderRequestID) == "" {
		t.Error("missing request id header")
	}

	if srv.TraceMetrics().TotalRequests < 1 {
		t.Errorf("TotalRequests = %d", srv.TraceMetrics().TotalRequests)
	}
}

func TestProbes(t *testing.T) {
	srv := newTestServer(t, Config{})
	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := get(srv, http.MethodGet, path); rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
}

func TestAPIProxy(t *testing.T) {
	var gotPath, gotAuth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotAuth = r.URL.RequestURI(), r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"count":0,"expenses":[]}`))
	}))
	defer backend.Close()

	srv := newTestServer(t, Config{APIProxyURL: backend.URL})

	req := httptest.NewRequest(http.MethodGet, "/api/expenses?filter=week", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("proxied status = %d", rr.Code)
	}
	if gotPath != "/api/expenses?filter=week" || gotAuth != "Bearer tok" {
		t.Errorf("backend saw %q with auth %q", gotPath, gotAuth)
	}
}

func TestAPIProxyUnavailable(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	url := backend.URL
	backend.Close()

	srv := newTestServer(t, Config{APIProxyURL: url})
	rr := get(srv, http.MethodGet, "/api/expenses")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Success {
		t.Errorf("body = %s (%v)", rr.Body.String(), err)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 2})
	defer limiter.Stop()
	srv := newTestServer(t, Config{Limiter: limiter})

	for i := 0; i < 2; i++ {
		if rr := get(srv, http.MethodGet, "/"); rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rr.Code)
		}
	}
	rr := get(srv, http.MethodGet, "/")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestNewServerRequiresIndex(t *testing.T) {
	if _, err := NewServer(Config{Files: fstest.MapFS{"app.js": {Data: []byte("x")}}}); err == nil {
		t.Error("expected error without index.html")
	}
	if _, err := NewServer(Config{}); err == nil {
		t.Error("expected error without files")
	}
}
