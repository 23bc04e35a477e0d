package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"expensetracker/internal/api"
	"expensetracker/internal/backend"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/services"
	"expensetracker/internal/token"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	result, err := backend.NewFactory(logger).Create(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	issuer := token.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	users := services.NewUserService(result.Repository, issuer, logger)
	expenses := services.NewExpenseService(result.Repository, result.Publisher, logger)

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	defer limiter.Stop()

	srv := cli.ConfigureServer(&http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewRouter(api.RouterConfig{
			Handler:     api.NewHandler(users, expenses, logger),
			Store:       result.Repository,
			CORSOrigins: cfg.CORSOrigins,
			Limiter:     limiter,
			Logger:      logger,
		}),
	})

	logger.Info("Starting expense API",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", result.Publisher != nil)
	if err := cli.Serve(ctx, srv, logger, 30*time.Second); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	m := limiter.GetMetrics()
	logger.Info("Expense API stopped", "rate_limited", m.TotalHits, "active_clients", m.ClientCount)
}
