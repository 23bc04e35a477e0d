package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/ports"
	"expensetracker/internal/token"
)

const minPasswordLen = 6

var (
	ErrUsernameRequired  = invalid("Username is required")
	ErrEmailRequired     = invalid("Email is required")
	ErrPasswordRequired  = invalid("Password is required")
	ErrEmailInvalid      = invalid("Email is invalid")
	ErrPasswordTooShort  = invalid("Password must be at least 6 characters long")
	ErrEmailTaken        = invalid("Email already exists")
	ErrUsernameTaken     = invalid("Username already exists")
	ErrInvalidCredential = invalid("Invalid email or password")
)

// UserService registers accounts and exchanges credentials for tokens.
type UserService struct {
	users  ports.UserRepository
	tokens *token.Issuer
	cost   int
	logger *log.Logger
}

func NewUserService(users ports.UserRepository, tokens *token.Issuer, logger *log.Logger) *UserService {
	if logger == nil {
		logger = log.Discard()
	}
	return &UserService{
		users:  users,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		logger: logger.WithComponent(log.ComponentAuth),
	}
}

// Register creates an account. Validation failures are *ValidationError.
func (s *UserService) Register(ctx context.Context, username, email, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	switch {
	case username == "":
		return core.User{}, ErrUsernameRequired
	case email == "":
		return core.User{}, ErrEmailRequired
	case password == "":
		return core.User{}, ErrPasswordRequired
	case len(password) < minPasswordLen:
		return core.User{}, ErrPasswordTooShort
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return core.User{}, ErrEmailInvalid
	}

	if _, err := s.users.UserByEmail(ctx, email); err == nil {
		return core.User{}, ErrEmailTaken
	} else if !errors.Is(err, ports.ErrNotFound) {
		return core.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, username, email, string(hash))
	if errors.Is(err, ports.ErrConflict) {
		// The email was free a moment ago, so the username collided.
		return core.User{}, ErrUsernameTaken
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered",
		log.FieldOperation, log.OpRegister,
		log.FieldUserID, user.ID)
	return user, nil
}

// Login checks the credentials and issues a bearer token.
func (s *UserService) Login(ctx context.Context, email, password string) (core.Session, error) {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return core.Session{}, ErrEmailRequired
	case password == "":
		return core.Session{}, ErrPasswordRequired
	}

	rec, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, ports.ErrNotFound) {
		return core.Session{}, ErrInvalidCredential
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Login rejected", log.FieldUserID, rec.ID)
		return core.Session{}, ErrInvalidCredential
	}

	raw, err := s.tokens.Issue(rec.User)
	if err != nil {
		return core.Session{}, err
	}
	s.logger.InfoContext(ctx, "User logged in",
		log.FieldOperation, log.OpLogin,
		log.FieldUserID, rec.ID)
	return core.Session{Token: raw, User: rec.User}, nil
}

// Authenticate resolves a bearer token to its user.
func (s *UserService) Authenticate(raw string) (core.User, error) {
	return s.tokens.Verify(raw)
}
