// Package http serves the built browser bundle with SPA fallback routing.
package http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"expensetracker/internal/cache"
	"expensetracker/internal/log"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
)

const (
	indexFile = "index.html"
	apiPrefix = "/api"

	// Files up to this size are kept in memory with their ETag.
	maxCachedFile = 1 << 20

	cacheNoCache   = "no-cache"
	cacheImmutable = "public, max-age=31536000, immutable"
	cacheDefault   = "public, max-age=3600"
)

type Config struct {
	Addr string
	// Files is the bundle root; it must contain index.html.
	Files fs.FS
	// APIProxyURL, when set, receives every /api request.
	APIProxyURL string
	// ConnectSrc lists extra origins the bundle may call.
	ConnectSrc []string
	Limiter    *ratelimit.Limiter
	Logger     *log.Logger
}

type Server struct {
	http.Server

	files   fs.FS
	proxy   *httputil.ReverseProxy
	assets  *cache.LRU[asset]
	janitor *cache.Janitor
	tracer  *trace.Middleware
	logger  *log.Logger

	shutdownOnce sync.Once
}

// asset is a file held in memory with its content hash.
type asset struct {
	data    []byte
	etag    string
	modTime time.Time
}

// NewServer wires the middleware chain and routes. The returned server is
// ready for ListenAndServe.
func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStatic)

	if cfg.Files == nil {
		return nil, errors.New("static server: no files")
	}
	if _, err := fs.Stat(cfg.Files, indexFile); err != nil {
		return nil, fmt.Errorf("static server: %s missing: %w", indexFile, err)
	}

	s := &Server{
		files:   cfg.Files,
		assets:  cache.NewLRU[asset](256, 10*time.Minute),
		janitor: cache.NewJanitor(logger),
		logger:  logger,
	}
	if cfg.APIProxyURL != "" {
		target, err := url.Parse(cfg.APIProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse API proxy url: %w", err)
		}
		s.proxy = newProxy(target, logger)
	}

	detector := security.NewDetector(logger)
	s.tracer = trace.NewMiddleware(logger, detector.ExtractClientIP)

	mux := http.NewServeMux()
	noStore := security.CacheControl("no-store")
	mux.Handle("GET /healthz", noStore(http.HandlerFunc(handleHealth)))
	mux.Handle("GET /readyz", noStore(http.HandlerFunc(s.handleReady)))
	mux.HandleFunc("/", s.handleRoot)

	var handler http.Handler = mux
	if cfg.Limiter != nil {
		handler = cfg.Limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
		})(handler)
	}
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig(cfg.ConnectSrc...)).Handler(handler)
	handler = detector.Handler(handler)
	handler = s.tracer.Handler(handler)

	s.Server = http.Server{Addr: cfg.Addr, Handler: handler}
	s.janitor.Register(s.assets)
	s.janitor.Start(10 * time.Minute)
	return s, nil
}

func newProxy(target *url.URL, logger *log.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if id := trace.GetRequestID(pr.In.Context()); id != "" {
				pr.Out.Header.Set(trace.HeaderRequestID, id)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ErrorContext(r.Context(), "API proxy error",
				log.FieldError, err,
				log.FieldPath, r.URL.Path,
				log.FieldRequestID, trace.GetRequestID(r.Context()))
			writeJSON(w, http.StatusBadGateway, "API unavailable")
		},
	}
}

// TraceMetrics reports request counters collected by the tracing middleware.
func (s *Server) TraceMetrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.janitor.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, apiPrefix) {
		s.handleAPI(w, r)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = indexFile
	}

	// Files are GET and HEAD only; client routes answer any method.
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		if path.Ext(r.URL.Path) == "" {
			s.serveIndex(w, r)
			return
		}
		http.NotFound(w, r)
		return
	}

	a, err := s.load(name)
	switch {
	case err == nil:
		w.Header().Set("Cache-Control", cacheControlFor(name))
		s.serve(w, r, name, a)
	case path.Ext(name) == "":
		// Client-side route.
		s.serveIndex(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if s.proxy == nil {
		writeJSON(w, http.StatusNotFound, "not found")
		return
	}
	s.proxy.ServeHTTP(w, r)
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	a, err := s.load(indexFile)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Index file unavailable", log.FieldError, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", cacheNoCache)
	s.serve(w, r, indexFile, a)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, name string, a asset) {
	w.Header().Set("ETag", a.etag)
	http.ServeContent(w, r, name, a.modTime, bytes.NewReader(a.data))
}

// load reads a regular file from the bundle. Directories count as missing.
func (s *Server) load(name string) (asset, error) {
	info, err := fs.Stat(s.files, name)
	if err != nil {
		return asset{}, err
	}
	if !info.Mode().IsRegular() {
		return asset{}, fs.ErrNotExist
	}

	read := func() (asset, error) {
		data, err := fs.ReadFile(s.files, name)
		if err != nil {
			return asset{}, err
		}
		sum := sha256.Sum256(data)
		return asset{
			data:    data,
			etag:    `"` + hex.EncodeToString(sum[:8]) + `"`,
			modTime: info.ModTime(),
		}, nil
	}
	if info.Size() > maxCachedFile {
		return read()
	}
	key := fmt.Sprintf("%s|%d|%d", name, info.Size(), info.ModTime().UnixNano())
	return s.assets.GetOrCompute(key, read)
}

// cacheControlFor keeps the entry document revalidated and lets hashed build
// output under assets/ be cached forever.
func cacheControlFor(name string) string {
	switch {
	case name == indexFile:
		return cacheNoCache
	case strings.HasPrefix(name, "assets/"):
		return cacheImmutable
	default:
		return cacheDefault
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if _, err := fs.Stat(s.files, indexFile); err != nil {
		http.Error(w, "index missing", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{false, message})
}
