// Package api exposes the expense backend as a JSON REST API under /api.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"expensetracker/internal/log"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Handler     *Handler
	Store       Pinger
	CORSOrigins []string
	Limiter     *ratelimit.Limiter
	Logger      *log.Logger
}

// NewRouter mounts the API, health probes and the shared middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	detector := security.NewDetector(logger)
	tracer := trace.NewMiddleware(logger, detector.ExtractClientIP)

	r := chi.NewRouter()
	r.Use(tracer.Handler)
	r.Use(middleware.Recoverer)
	r.Use(detector.Handler)
	r.Use(security.NewHeadersMiddleware(security.APIHeadersConfig()).Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		NotFound("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		Fail(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", readyHandler(cfg.Store))

	h := cfg.Handler
	r.Route("/api", func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(cfg.Limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
				Fail(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
			}))
		}

		r.Post("/users/register", h.Register)
		r.Post("/users/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)
			r.Get("/expenses", h.ListExpenses)
			r.Post("/expenses", h.CreateExpense)
			r.Put("/expenses/{id}", h.UpdateExpense)
			r.Delete("/expenses/{id}", h.DeleteExpense)
		})
	})

	return r
}

func readyHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
				http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}
