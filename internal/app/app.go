// Package app wires the session and expense containers for a front end.
package app

import (
	"context"
	"fmt"
	"net/http"

	"expensetracker/internal/apiclient"
	"expensetracker/internal/auth"
	"expensetracker/internal/expenses"
	"expensetracker/internal/log"
	"expensetracker/internal/prefs"
)

type Config struct {
	APIURL     string
	Store      prefs.Store
	HTTPClient *http.Client
	Logger     *log.Logger
}

// App is passed explicitly to every presentation component.
type App struct {
	Client   *apiclient.Client
	Auth     *auth.Manager
	Expenses *expenses.Store

	logger *log.Logger
}

func New(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	store := cfg.Store
	if store == nil {
		store = prefs.NewMemory()
	}

	client := apiclient.New(cfg.APIURL,
		apiclient.WithHTTPClient(cfg.HTTPClient),
		apiclient.WithLogger(logger))
	am := auth.NewManager(client, store, logger)

	return &App{
		Client:   client,
		Auth:     am,
		Expenses: expenses.NewStore(client, am, logger),
		logger:   logger.WithComponent(log.ComponentApp),
	}
}

// Start restores a persisted session and, if one exists, loads expenses.
func (a *App) Start(ctx context.Context) error {
	if err := a.Auth.Restore(); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if !a.Auth.IsAuthenticated() {
		return nil
	}
	return a.Expenses.Load(ctx)
}

// Login authenticates and loads the new user's expenses.
func (a *App) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	res, err := a.Auth.Login(ctx, email, password)
	if err != nil || !res.Success {
		return res, err
	}
	a.Expenses.Reset()
	if err := a.Expenses.Load(ctx); err != nil {
		a.logger.WarnContext(ctx, "Loading expenses after login failed", log.FieldError, err)
		return res, err
	}
	return res, nil
}

// Logout forgets the session and drops the cached expenses.
func (a *App) Logout() error {
	err := a.Auth.Logout()
	a.Expenses.Reset()
	return err
}
