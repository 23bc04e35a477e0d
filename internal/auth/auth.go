// Package auth holds the client's authenticated session.
//
// The session lives in memory and is mirrored to a prefs.Store so that it
// survives restarts. Nothing is ever verified against the backend: a restored
// token is trusted until a request fails with it.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"expensetracker/internal/apiclient"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/prefs"
)

// Durable storage keys.
const (
	TokenKey = "expense-tracker-token"
	UserKey  = "expense-tracker-user"
)

type (
	// LoginResult is the decoded login reply.
	LoginResult struct {
		Success bool      `json:"success"`
		Message string    `json:"message"`
		Token   string    `json:"token"`
		User    core.User `json:"user"`
	}

	RegisterRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
)

// Manager owns the current session.
type Manager struct {
	client *apiclient.Client
	store  prefs.Store
	logger *log.Logger

	mu      sync.RWMutex
	session core.Session
}

// NewManager creates a manager with an empty session. Call Restore to pick up
// a previously persisted one.
func NewManager(client *apiclient.Client, store prefs.Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		client: client,
		store:  store,
		logger: logger.WithComponent(log.ComponentAuth),
	}
}

// Login authenticates against the API. The result is returned whether or not
// the credentials were accepted; only a successful login changes state.
func (m *Manager) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	res, err := m.client.Post(ctx, "/users/login", loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	var out LoginResult
	if err := res.Decode(&out); err != nil {
		// The body is an object but a field had the wrong type.
		out = LoginResult{Success: res.Success(), Message: res.Message()}
	}
	if !out.Success {
		m.logger.InfoContext(ctx, "Login rejected",
			log.FieldOperation, log.OpLogin,
			log.FieldStatusCode, res.StatusCode)
		return &out, nil
	}

	if err := m.setSession(core.Session{Token: out.Token, User: out.User}); err != nil {
		return &out, err
	}
	m.logger.InfoContext(ctx, "Logged in",
		log.FieldOperation, log.OpLogin,
		log.FieldUserID, out.User.ID)
	return &out, nil
}

// Register creates an account. It does not log in.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (*apiclient.Response, error) {
	res, err := m.client.Post(ctx, "/users/register", req)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	m.logger.DebugContext(ctx, "Register completed",
		log.FieldOperation, log.OpRegister,
		log.FieldSuccess, res.Success())
	return res, nil
}

// Logout forgets the session. Memory is always cleared; a storage failure is
// still reported.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.session = core.Session{}
	m.mu.Unlock()

	if err := m.store.Delete(TokenKey, UserKey); err != nil {
		m.logger.Warn("Clearing stored session failed",
			log.FieldOperation, log.OpLogout,
			log.FieldError, err)
		return fmt.Errorf("clear stored session: %w", err)
	}
	m.logger.Info("Logged out", log.FieldOperation, log.OpLogout)
	return nil
}

// Restore loads a persisted session. Both keys must be present and the user
// must decode; otherwise the manager stays logged out.
func (m *Manager) Restore() error {
	token, okToken, err := m.store.Get(TokenKey)
	if err != nil {
		return fmt.Errorf("read stored token: %w", err)
	}
	raw, okUser, err := m.store.Get(UserKey)
	if err != nil {
		return fmt.Errorf("read stored user: %w", err)
	}
	if !okToken || !okUser || token == "" {
		return nil
	}

	var user core.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		m.logger.Warn("Stored user is unreadable, ignoring session",
			log.FieldOperation, log.OpRestore,
			log.FieldError, err)
		return nil
	}

	m.mu.Lock()
	m.session = core.Session{Token: token, User: user}
	m.mu.Unlock()

	m.logger.Debug("Session restored",
		log.FieldOperation, log.OpRestore,
		log.FieldUserID, user.ID)
	return nil
}

// Token returns the bearer token, empty when logged out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Token
}

// User returns the logged-in user.
func (m *Manager) User() (core.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.User, m.session.Valid()
}

func (m *Manager) Session() core.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// IsAuthenticated reports whether a token is held.
func (m *Manager) IsAuthenticated() bool {
	return m.Token() != ""
}

func (m *Manager) setSession(s core.Session) error {
	user, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	err = errors.Join(
		m.store.Set(TokenKey, s.Token),
		m.store.Set(UserKey, string(user)),
	)
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}
