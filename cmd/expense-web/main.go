package main

import (
	"context"
	"io/fs"
	"os"
	"time"

	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	apphttp "expensetracker/internal/http"
	"expensetracker/internal/log"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/web"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.LoadWeb()
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	var files fs.FS = web.Dist()
	source := "embedded"
	if cfg.StaticDir != "" {
		files, source = os.DirFS(cfg.StaticDir), cfg.StaticDir
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	defer limiter.Stop()

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:        ":" + cfg.Port,
		Files:       files,
		APIProxyURL: cfg.APIProxyURL,
		Limiter:     limiter,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("Failed to initialize static server", log.FieldError, err, "source", source)
		os.Exit(1)
	}
	cli.ConfigureServer(&srv.Server)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	logger.Info("Starting expense web server", "port", cfg.Port, "files", source, "api_proxy", cfg.APIProxyURL)
	if err := cli.Serve(ctx, srv, logger, 30*time.Second); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	m := srv.TraceMetrics()
	logger.Info("Server stopped gracefully", "requests", m.TotalRequests, "server_errors", m.ServerErrors)
}
