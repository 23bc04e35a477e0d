// Package backend assembles the storage and event publisher the API runs on.
package backend

import (
	"context"
	"errors"
	"fmt"

	"expensetracker/internal/amqp"
	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/ports"
	"expensetracker/internal/storage/memory"
	"expensetracker/internal/storage/postgres"
	"expensetracker/internal/storage/sqlite"
)

// CleanupFunc releases what the backend opened.
type CleanupFunc func() error

// Result holds the assembled backend. Publisher is nil when AMQP is not
// configured or unreachable at startup.
type Result struct {
	Repository ports.Repository
	Publisher  ports.EventPublisher
	Cleanup    CleanupFunc
}

type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{logger: logger.WithComponent(log.ComponentStorage)}
}

// Create opens the repository named by cfg.DataBackend and, when AMQP_URL is
// set, the event publisher.
func (f *Factory) Create(ctx context.Context, cfg *config.Config) (*Result, error) {
	repo, err := f.createRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	result := &Result{Repository: repo}
	closers := []func() error{repo.Close}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			result.Publisher = client
			closers = append(closers, client.Close)
		}
	}

	result.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return result, nil
}

func (f *Factory) createRepository(ctx context.Context, cfg *config.Config) (ports.Repository, error) {
	switch cfg.DataBackend {
	case config.BackendSQLite:
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return repo, nil

	case config.BackendPostgres:
		repo, err := postgres.NewRepository(ctx, cfg.DatabaseURL, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized Postgres backend")
		return repo, nil

	case config.BackendMemory:
		f.logger.WarnContext(ctx, "Using in-memory backend, data is lost on restart")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
	}
}
